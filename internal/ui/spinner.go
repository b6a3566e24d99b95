package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// IsInteractive checks if stdout is a terminal, to avoid animated output
// when piping or running in CI.
func IsInteractive() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

type spinnerDoneMsg struct{ err error }

type spinnerModel struct {
	spinner spinner.Model
	label   string
	err     error
}

func newSpinnerModel(label string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)
	return spinnerModel{spinner: s, label: label}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.err != nil {
		return ""
	}
	return fmt.Sprintf("%s %s…\n", m.spinner.View(), m.label)
}

// RunWithSpinner runs fn while showing an animated spinner with the given
// label. When stdout is not a terminal the spinner is skipped and fn runs
// directly.
func RunWithSpinner(label string, fn func() error) error {
	if !IsInteractive() {
		return fn()
	}

	p := tea.NewProgram(newSpinnerModel(label))
	done := make(chan error, 1)
	go func() {
		err := fn()
		done <- err
		p.Send(spinnerDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		// Fall back to the plain result when the terminal program fails.
		return <-done
	}
	return <-done
}
