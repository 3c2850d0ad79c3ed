package srcapi

// Wire types for the speedrun.com v1 API. Optional embeds are pointers;
// missing videos.links is an empty list, not an error.

type Run struct {
	ID        string        `json:"id"`
	Videos    *RunVideos    `json:"videos"`
	Players   PlayersEmbed  `json:"players"`
	Game      GameEmbed     `json:"game"`
	Category  CategoryEmbed `json:"category"`
	Times     RunTimes      `json:"times"`
	Submitted string        `json:"submitted"`
	Date      string        `json:"date"`
	Comment   string        `json:"comment"`
}

// VideoLinks returns the embedded video URIs, tolerating a null videos
// object or null links array.
func (r Run) VideoLinks() []string {
	if r.Videos == nil {
		return nil
	}
	uris := make([]string, 0, len(r.Videos.Links))
	for _, l := range r.Videos.Links {
		uris = append(uris, l.URI)
	}
	return uris
}

type RunVideos struct {
	Links []VideoLink `json:"links"`
}

type VideoLink struct {
	URI string `json:"uri"`
}

type PlayersEmbed struct {
	Data []Player `json:"data"`
}

type Player struct {
	Rel     string       `json:"rel"`
	Name    string       `json:"name"`
	Names   *PlayerNames `json:"names"`
	Twitch  *URIResource `json:"twitch"`
	YouTube *URIResource `json:"youtube"`
}

// DisplayName is the guest name for guests and the international name for
// registered identities.
func (p Player) DisplayName() string {
	if p.Rel == "guest" {
		return p.Name
	}
	if p.Names != nil {
		return p.Names.International
	}
	return p.Name
}

type PlayerNames struct {
	International string `json:"international"`
}

type URIResource struct {
	URI string `json:"uri"`
}

type GameEmbed struct {
	Data GameData `json:"data"`
}

type GameData struct {
	Names        GameNames `json:"names"`
	Abbreviation string    `json:"abbreviation"`
}

type GameNames struct {
	International string `json:"international"`
}

type CategoryEmbed struct {
	Data CategoryData `json:"data"`
}

type CategoryData struct {
	Name string `json:"name"`
}

type RunTimes struct {
	Primary string `json:"primary"`
}

type runsPage struct {
	Data       []Run `json:"data"`
	Pagination struct {
		Size int `json:"size"`
	} `json:"pagination"`
}
