package highlight

import (
	"fmt"
	"strings"
	"time"

	"github.com/sosodev/duration"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/runstore"
)

const blockSeparator = "--------------------------------------------------"

// WriteReport renders the human-readable highlight report, one block per
// highlight.
func WriteReport(path string, highlights []model.Highlight) error {
	var b strings.Builder
	for _, h := range highlights {
		fmt.Fprintf(&b, "Players: %s\n", strings.Join(h.Players, ", "))
		fmt.Fprintf(&b, "Game: %s\n", h.Game)
		fmt.Fprintf(&b, "Category: %s\n", h.Category)
		fmt.Fprintf(&b, "Time: %s\n", formatRunTime(h.Time))
		fmt.Fprintf(&b, "Date: %s\n", formatRunDate(h.Date))
		fmt.Fprintf(&b, "Submitted: %s\n", h.Submitted)
		for _, url := range h.URLs {
			fmt.Fprintf(&b, "URL: %s\n", url)
		}
		fmt.Fprintf(&b, "SRC link: %s\n", h.SourceLink())
		if h.AtRisk {
			b.WriteString("Channel exceeds the 100 hour highlight limit\n")
		}
		if h.Comment != "" {
			fmt.Fprintf(&b, "Comment: %s\n", h.Comment)
		}
		if len(h.VodSites) != 0 {
			fmt.Fprintf(&b, "Vod sites: %s\n", strings.Join(h.VodSites, ", "))
		}
		b.WriteString(blockSeparator + "\n")
	}
	return runstore.WriteBytes(path, []byte(b.String()))
}

// WriteHighlights persists the structured highlight list.
func WriteHighlights(path string, highlights []model.Highlight) error {
	return runstore.WriteJSON(path, highlights)
}

// SeedQueue writes a fresh download queue covering every highlight URL,
// risk markers included, with the submission deep link as provenance.
func SeedQueue(path string, highlights []model.Highlight) error {
	queue := model.DownloadQueue{SchemaVersion: model.QueueSchemaVersion}
	for _, h := range highlights {
		for _, url := range h.URLs {
			queue.Items = append(queue.Items, model.DownloadItem{
				URL:    url,
				Origin: h.SourceLink(),
			})
		}
	}
	return runstore.WriteJSON(path, queue)
}

// formatRunTime renders the API's ISO 8601 primary time ("PT24M41.500S")
// in the familiar stopwatch form. Unparseable values pass through as-is.
func formatRunTime(iso string) string {
	d, err := duration.Parse(iso)
	if err != nil {
		return iso
	}
	return d.ToTimeDuration().String()
}

// formatRunDate renders the run date long-form, falling back to "Unknown
// date" when the API omitted it.
func formatRunDate(raw string) string {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "Unknown date"
	}
	return t.Format("January 02, 2006")
}
