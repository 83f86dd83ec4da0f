// Package ui renders operator command progress in the terminal.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	started time.Time
	done    bool
	details []string
	err     error
	run     func() ([]string, error)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), func() tea.Msg {
		details, err := m.run()
		return doneMsg{details: details, err: err}
	})
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(frames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if !m.done {
		elapsed := time.Since(m.started).Round(100 * time.Millisecond)
		return fmt.Sprintf("%s %s %s\n", frames[m.frame], titleStyle.Render(m.title), dimStyle.Render(elapsed.String()))
	}
	return Summary(m.title, m.details, m.err)
}

// Summary renders a finished command as a status line followed by details.
func Summary(title string, details []string, err error) string {
	var b strings.Builder
	if err != nil {
		b.WriteString(failStyle.Render("✗ "+title) + "\n")
	} else {
		b.WriteString(okStyle.Render("✓ "+title) + "\n")
	}
	for _, d := range details {
		b.WriteString("  " + d + "\n")
	}
	if err != nil {
		b.WriteString("  " + failStyle.Render(err.Error()) + "\n")
	}
	return b.String()
}

// Run executes fn while animating title on the terminal. The ctrl+c key
// cancels the context passed to fn.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := model{
		title:   title,
		started: time.Now(),
		run:     func() ([]string, error) { return fn(ctx) },
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	fm := final.(model)
	return fm.details, fm.err
}

// RunPlain executes fn without animation and writes the summary to out.
func RunPlain(ctx context.Context, out io.Writer, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	details, err := fn(ctx)
	_, _ = io.WriteString(out, Summary(title, details, err))
	return details, err
}
