package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Maroon = lipgloss.Color("#8B1538")
	Ink    = lipgloss.Color("#f2f2f2")
	Muted  = lipgloss.Color("#6c757d")
	Accent = lipgloss.Color("#8BC34A")
	Danger = lipgloss.Color("#e53935")
	Warn   = lipgloss.Color("#FFC107")
)

// Styles groups the lipgloss styles used by the terminal client.
type Styles struct {
	Header      lipgloss.Style
	Filter      lipgloss.Style
	FilterOn    lipgloss.Style
	Card        lipgloss.Style
	CardCursor  lipgloss.Style
	Title       lipgloss.Style
	Meta        lipgloss.Style
	Error       lipgloss.Style
	Status      lipgloss.Style
	Help        lipgloss.Style
	Modal       lipgloss.Style
	AdminHeader lipgloss.Style
	Dirty       lipgloss.Style
}

// DefaultStyles returns the stock look.
func DefaultStyles() Styles {
	return Styles{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(Ink).Background(Maroon).Padding(0, 1),
		Filter:      lipgloss.NewStyle().Foreground(Muted).Padding(0, 1),
		FilterOn:    lipgloss.NewStyle().Bold(true).Foreground(Ink).Background(Maroon).Padding(0, 1),
		Card:        lipgloss.NewStyle().PaddingLeft(2),
		CardCursor:  lipgloss.NewStyle().Bold(true).Foreground(Accent).Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1),
		Title:       lipgloss.NewStyle().Bold(true),
		Meta:        lipgloss.NewStyle().Foreground(Muted),
		Error:       lipgloss.NewStyle().Foreground(Danger).Bold(true),
		Status:      lipgloss.NewStyle().Foreground(Warn),
		Help:        lipgloss.NewStyle().Foreground(Muted).Italic(true),
		Modal:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Maroon).Padding(1, 2),
		AdminHeader: lipgloss.NewStyle().Bold(true).Foreground(Ink).Background(Muted).Padding(0, 1),
		Dirty:       lipgloss.NewStyle().Foreground(Warn).Bold(true),
	}
}

// chip renders a label in its own color.
func chip(name, color string) string {
	if color == "" {
		color = string(Muted)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("● " + name)
}
