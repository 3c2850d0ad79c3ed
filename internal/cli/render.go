package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"speedrun-rescue/internal/download"
	"speedrun-rescue/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// printOutcomeSummary renders the per-status rollup after a queue run.
func printOutcomeSummary(outcomes []download.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	counts := map[string]int{}
	for _, o := range outcomes {
		counts[o.Status]++
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Queue run summary"))
	b.WriteString("\n")
	for _, status := range []string{
		model.StatusDownloaded,
		model.StatusSkippedNotAtRisk,
		model.StatusSkippedConfirmedMissing,
	} {
		if counts[status] == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d\n", status, counts[status])
	}
	fmt.Println(panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}
