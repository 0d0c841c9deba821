package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func sized(t *testing.T, p Pager) Pager {
	t.Helper()
	m, _ := p.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return m.(Pager)
}

func TestPagerNotReadyBeforeSize(t *testing.T) {
	p := NewPager("report", "body")
	if got := p.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestPagerRendersContent(t *testing.T) {
	p := sized(t, NewPager("Langfuse Generation Metrics", "=== header ===\nrow one\nrow two"))
	if !p.ready {
		t.Fatal("pager not ready after WindowSizeMsg")
	}

	view := p.View()
	for _, want := range []string{"Langfuse Generation Metrics", "row one", "row two", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestPagerQuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}
	for _, key := range keys {
		p := sized(t, NewPager("t", "c"))
		_, cmd := p.Update(key)
		if cmd == nil {
			t.Fatalf("key %q returned no command", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q did not quit", key.String())
		}
	}
}

func TestPagerResize(t *testing.T) {
	p := sized(t, NewPager("t", "c"))
	m, _ := p.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	p = m.(Pager)
	if p.viewport.Width != 120 || p.viewport.Height != 40-headerHeight-footerHeight {
		t.Errorf("viewport = %dx%d, want 120x%d", p.viewport.Width, p.viewport.Height, 40-headerHeight-footerHeight)
	}
}

func TestGetLineStyle(t *testing.T) {
	warn := GetLineStyle("Warnings (2):")
	if warn.GetForeground() != warningColor {
		t.Errorf("warning line foreground = %v, want %v", warn.GetForeground(), warningColor)
	}
	if GetLineStyle("plain").GetBold() {
		t.Error("plain line should not be bold")
	}
}
