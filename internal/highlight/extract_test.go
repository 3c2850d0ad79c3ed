package highlight

import (
	"testing"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/srcapi"
)

func videoRun(id string, links ...string) srcapi.Run {
	r := srcapi.Run{ID: id, Videos: &srcapi.RunVideos{}}
	for _, l := range links {
		r.Videos.Links = append(r.Videos.Links, srcapi.VideoLink{URI: l})
	}
	r.Game.Data.Names.International = "Celeste"
	r.Game.Data.Abbreviation = "celeste"
	r.Category.Data.Name = "Any%"
	r.Times.Primary = "PT24M41S"
	r.Date = "2024-01-10"
	return r
}

func TestExtractKeepsOnlyTwitchVideoRuns(t *testing.T) {
	runs := []srcapi.Run{
		videoRun("r1", "https://www.twitch.tv/videos/111"),
		videoRun("r2", "https://youtube.com/watch?v=zz"),
		videoRun("r3", "https://twitch.tv/chan/c/42"),
		{ID: "r4"}, // no videos at all
	}
	highlights, urls := Extract(runs, false)
	if len(highlights) != 1 || highlights[0].RunID != "r1" {
		t.Fatalf("unexpected highlights: %+v", highlights)
	}
	if len(urls) != 1 || urls[0] != "https://www.twitch.tv/videos/111" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestExtractIgnoreDescriptionLinksKeepsLast(t *testing.T) {
	run := videoRun("r1",
		"https://www.twitch.tv/videos/100",
		"https://www.twitch.tv/videos/200",
		"https://www.twitch.tv/videos/300",
	)

	highlights, _ := Extract([]srcapi.Run{run}, true)
	if len(highlights) != 1 {
		t.Fatalf("want 1 highlight, got %d", len(highlights))
	}
	if len(highlights[0].URLs) != 1 || highlights[0].URLs[0] != "https://www.twitch.tv/videos/300" {
		t.Fatalf("should keep only the last link: %v", highlights[0].URLs)
	}

	highlights, _ = Extract([]srcapi.Run{run}, false)
	if len(highlights[0].URLs) != 3 {
		t.Fatalf("without the flag all links stay: %v", highlights[0].URLs)
	}
}

func TestExtractPlayersAndVodSites(t *testing.T) {
	run := videoRun("r1", "https://www.twitch.tv/videos/111")
	run.Players.Data = []srcapi.Player{
		{
			Rel:     "user",
			Names:   &srcapi.PlayerNames{International: "runnerchan"},
			Twitch:  &srcapi.URIResource{URI: "https://www.twitch.tv/runnerchan"},
			YouTube: &srcapi.URIResource{URI: "https://youtube.com/@runnerchan"},
		},
		{Rel: "guest", Name: "anon"},
	}

	highlights, _ := Extract([]srcapi.Run{run}, false)
	h := highlights[0]
	if len(h.Players) != 2 || h.Players[0] != "runnerchan" || h.Players[1] != "anon" {
		t.Fatalf("unexpected players: %v", h.Players)
	}
	if len(h.VodSites) != 2 {
		t.Fatalf("unexpected vod sites: %v", h.VodSites)
	}
}

func TestFilterPersonalBests(t *testing.T) {
	runs := []srcapi.Run{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	kept := FilterPersonalBests(runs, map[string]bool{"a": true, "c": true})
	if len(kept) != 2 || kept[0].ID != "a" || kept[1].ID != "c" {
		t.Fatalf("unexpected kept runs: %+v", kept)
	}
}

func TestAnnotateMarksAtRiskURLs(t *testing.T) {
	highlights := []model.Highlight{
		{URLs: []string{"https://www.twitch.tv/videos/111"}},
		{URLs: []string{"https://www.twitch.tv/videos/222"}},
	}
	atRisk := func(url string) bool {
		return url == "https://www.twitch.tv/videos/111"
	}

	marked := Annotate(highlights, atRisk, false)
	if marked != 1 {
		t.Fatalf("want 1 marked url, got %d", marked)
	}
	if highlights[0].URLs[0] != "https://www.twitch.tv/videos/111"+model.AtRiskMarker || !highlights[0].AtRisk {
		t.Fatalf("first highlight not marked: %+v", highlights[0])
	}
	if highlights[1].AtRisk {
		t.Fatalf("second highlight should stay unmarked")
	}
}

func TestAnnotateMarkAllWithoutUsageData(t *testing.T) {
	highlights := []model.Highlight{
		{URLs: []string{"https://www.twitch.tv/videos/111", "https://www.twitch.tv/videos/222"}},
	}
	marked := Annotate(highlights, nil, true)
	if marked != 2 {
		t.Fatalf("want 2 marked urls, got %d", marked)
	}
	for _, url := range highlights[0].URLs {
		if url[len(url)-len(model.AtRiskMarker):] != model.AtRiskMarker {
			t.Fatalf("url not marked: %q", url)
		}
	}
}
