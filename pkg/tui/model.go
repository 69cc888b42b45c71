package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tangle-tui/tangle/pkg/runtime"
)

// Styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type model struct {
	frame    string
	title    string
	width    int
	height   int
	quitting bool

	keys func(tea.KeyMsg)
	loop *runtime.Loop
}

func newModel(frame, title string, keys func(tea.KeyMsg), loop *runtime.Loop) model {
	return model{frame: frame, title: title, keys: keys, loop: loop}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case repaintMsg:
		m.frame = msg.frame
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if m.keys != nil {
			// State writes belong on the dispatch loop, not the Bubble
			// Tea goroutine.
			key := msg
			m.loop.Dispatch(func() { m.keys(key) })
		}
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(titleStyle.Render(m.title))
		b.WriteString("\n")
	}
	b.WriteString(frameStyle.Render(m.frame))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}
