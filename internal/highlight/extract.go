package highlight

import (
	"fmt"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/srcapi"
	"speedrun-rescue/internal/twitch"
)

// FilterPersonalBests keeps only runs whose id appears in pbs.
func FilterPersonalBests(runs []srcapi.Run, pbs map[string]bool) []srcapi.Run {
	kept := make([]srcapi.Run, 0, len(runs))
	for _, r := range runs {
		if pbs[r.ID] {
			kept = append(kept, r)
		}
	}
	return kept
}

// Extract turns verified runs into highlights, keeping only runs that carry
// at least one Twitch video link. It also returns the flat list of all
// Twitch video URLs across the kept highlights, in run order, for the
// usage aggregator.
//
// When ignoreDescriptionLinks is set and a run carries several links, only
// the last one is kept: submitters put commentary and splits links first
// and the actual video last.
func Extract(runs []srcapi.Run, ignoreDescriptionLinks bool) ([]model.Highlight, []string) {
	var highlights []model.Highlight
	var allURLs []string

	for _, r := range runs {
		links := r.VideoLinks()
		if len(links) == 0 {
			continue
		}
		if ignoreDescriptionLinks && len(links) > 1 {
			links = links[len(links)-1:]
		}

		var urls []string
		for _, link := range links {
			kind, _ := twitch.Classify(link)
			switch kind {
			case twitch.TwitchVideo:
				urls = append(urls, link)
			case twitch.TwitchNonVideo:
				fmt.Printf("skipped non-video twitch url %s (run %s)\n", link, r.ID)
			default:
				fmt.Printf("skipped non-twitch url %s (run %s)\n", link, r.ID)
			}
		}
		if len(urls) == 0 {
			continue
		}

		players := make([]string, 0, len(r.Players.Data))
		var vodSites []string
		for _, p := range r.Players.Data {
			players = append(players, p.DisplayName())
			if p.Twitch != nil && p.Twitch.URI != "" {
				vodSites = append(vodSites, p.Twitch.URI)
			}
			if p.YouTube != nil && p.YouTube.URI != "" {
				vodSites = append(vodSites, p.YouTube.URI)
			}
		}

		highlights = append(highlights, model.Highlight{
			Players:      players,
			Game:         r.Game.Data.Names.International,
			Abbreviation: r.Game.Data.Abbreviation,
			Category:     r.Category.Data.Name,
			Time:         r.Times.Primary,
			URLs:         urls,
			RunID:        r.ID,
			Submitted:    r.Submitted,
			Date:         r.Date,
			Comment:      r.Comment,
			VodSites:     vodSites,
		})
		allURLs = append(allURLs, urls...)
	}

	return highlights, allURLs
}

// Annotate marks at-risk highlight URLs in place with the risk suffix and
// sets the per-highlight flag. markAll treats every URL as at risk, which
// is the stance when no usage data is available. Returns how many URLs got
// marked.
func Annotate(highlights []model.Highlight, atRisk func(url string) bool, markAll bool) int {
	marked := 0
	for i := range highlights {
		h := &highlights[i]
		for j, url := range h.URLs {
			if markAll || (atRisk != nil && atRisk(url)) {
				h.URLs[j] = url + model.AtRiskMarker
				h.AtRisk = true
				marked++
			}
		}
	}
	return marked
}
