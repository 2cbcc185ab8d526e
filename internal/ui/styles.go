package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// StyleManager encapsulates all TUI styles
type StyleManager struct {
	// List view styles
	Key      lipgloss.Style
	Kind     lipgloss.Style
	Summary  lipgloss.Style
	Position lipgloss.Style
	Selected lipgloss.Style
	Cursor   lipgloss.Style
	Dim      lipgloss.Style

	// Preview styles
	Heading lipgloss.Style
	Code    lipgloss.Style
	Math    lipgloss.Style
	Link    lipgloss.Style
	Quote   lipgloss.Style
	Image   lipgloss.Style
	Error   lipgloss.Style

	// Chrome styles
	Border  lipgloss.Style
	Divider lipgloss.Style

	SelectedBg lipgloss.Color
}

// DefaultStyles returns a StyleManager with default styles
func DefaultStyles() *StyleManager {
	selectedBg := lipgloss.Color("236")
	return &StyleManager{
		Key:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Kind:       lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Summary:    lipgloss.NewStyle(),
		Position:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Selected:   lipgloss.NewStyle().Background(selectedBg),
		Cursor:     lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Dim:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Heading:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Code:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Math:       lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		Link:       lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("4")),
		Quote:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Image:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("13")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Border:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")),
		Divider:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		SelectedBg: selectedBg,
	}
}

// WithSelection returns a copy of the given style with the selected background applied
func (s *StyleManager) WithSelection(style lipgloss.Style) lipgloss.Style {
	return style.Background(s.SelectedBg)
}

// Global style manager instance
var styles = DefaultStyles()
