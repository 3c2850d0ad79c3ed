package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// confirmResume asks whether to pick up a persisted queue instead of
// re-harvesting. Non-interactive invocations default to a fresh harvest;
// pass --resume to override.
func confirmResume(pending int) (bool, error) {
	if !stdinIsTTY() {
		fmt.Println(infoStyle.Render(fmt.Sprintf(
			"found a queue with %d pending items; re-harvesting (pass --resume to continue it instead)", pending)))
		return false, nil
	}

	input := textinput.New()
	input.Placeholder = "y/n"
	input.CharLimit = 3
	input.Width = 10
	input.Focus()

	m := resumeModel{pending: pending, input: input}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return false, fmt.Errorf("resume prompt: %w", err)
	}
	result, ok := final.(resumeModel)
	if !ok {
		return false, nil
	}
	return result.resume, nil
}

type resumeModel struct {
	pending int
	input   textinput.Model
	resume  bool
	done    bool
	errText string
}

func (m resumeModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m resumeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.resume = false
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			answer, ok := parseBool(m.input.Value())
			if !ok {
				m.errText = fmt.Sprintf("unrecognized answer %q, type y or n", m.input.Value())
				m.input.SetValue("")
				return m, nil
			}
			m.resume = answer
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m resumeModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pending downloads found"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("The previous run left %d items in the queue.\n", m.pending))
	b.WriteString("Resume the queue instead of re-harvesting? ")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render("enter to confirm, esc to re-harvest"))
	return panelStyle.Render(b.String())
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes", "true", "1":
		return true, true
	case "n", "no", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
