package tui

import "github.com/charmbracelet/lipgloss"

// Styles 定义终端界面的配色。
type Styles struct {
	Title   lipgloss.Style
	User    lipgloss.Style
	Bot     lipgloss.Style
	System  lipgloss.Style
	Label   lipgloss.Style
	Hint    lipgloss.Style
	Confirm lipgloss.Style
	Spinner lipgloss.Style
	Input   lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1),
		User:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#3C3C8C")).Padding(0, 1),
		Bot:     lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E0E0")),
		System:  lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")).Italic(true),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		Hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
		Confirm: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C")).Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
		Input:   lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(lipgloss.Color("#444444")),
	}
}
