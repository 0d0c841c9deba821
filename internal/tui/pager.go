package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	CtrlC = "ctrl+c"

	headerHeight = 2
	footerHeight = 1
)

// Pager is a bubbletea model that scrolls a rendered report
type Pager struct {
	title    string
	content  string
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// NewPager creates a pager over content
func NewPager(title, content string) Pager {
	return Pager{title: title, content: content}
}

// Init initializes the model
func (p Pager) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (p Pager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", CtrlC:
			return p, tea.Quit
		case "g", "home":
			p.viewport.GotoTop()
			return p, nil
		case "G", "end":
			p.viewport.GotoBottom()
			return p, nil
		}

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		bodyHeight := max(msg.Height-headerHeight-footerHeight, 1)

		if !p.ready {
			p.viewport = viewport.New(msg.Width, bodyHeight)
			p.viewport.SetContent(highlight(p.content))
			p.ready = true
		} else {
			p.viewport.Width = msg.Width
			p.viewport.Height = bodyHeight
		}
	}

	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View renders the pager
func (p Pager) View() string {
	if !p.ready {
		return "Loading..."
	}

	header := TitleStyle.Render(p.title)
	help := fmt.Sprintf("%s scroll  %s top/bottom  %s quit",
		HelpKeyStyle.Render("↑/↓"), HelpKeyStyle.Render("g/G"), HelpKeyStyle.Render("q"))
	position := MutedStyle.Render(fmt.Sprintf("%3.f%%", p.viewport.ScrollPercent()*100))
	footer := lipgloss.JoinHorizontal(lipgloss.Top, HelpStyle.Render(help), position)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", p.viewport.View(), footer)
}

// highlight styles report lines for the terminal
func highlight(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = GetLineStyle(line).Render(line)
	}
	return strings.Join(lines, "\n")
}

// RunPager shows content in a full-screen pager until the user quits
func RunPager(title, content string) error {
	_, err := tea.NewProgram(NewPager(title, content), tea.WithAltScreen()).Run()
	return err
}
