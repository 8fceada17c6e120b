package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Theme holds the lipgloss styles shared by every view. Styles are built
// once against a renderer so color degradation on dumb terminals is
// handled in one place.
type Theme struct {
	Cursor    lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
	Orphan    lipgloss.Style
	Usage     lipgloss.Style
	Status    lipgloss.Style
	StatusErr lipgloss.Style
	Footer    lipgloss.Style
	Prompt    lipgloss.Style
	EditLabel lipgloss.Style

	renderer *lipgloss.Renderer
}

func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Theme{
		Cursor:    r.NewStyle().Background(lipgloss.Color("237")).Bold(true),
		Selected:  r.NewStyle().Foreground(lipgloss.Color("212")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("243")),
		Orphan:    r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		Usage:     r.NewStyle().Foreground(lipgloss.Color("245")),
		Status:    r.NewStyle().Foreground(lipgloss.Color("114")),
		StatusErr: r.NewStyle().Foreground(lipgloss.Color("203")),
		Footer:    r.NewStyle().Foreground(lipgloss.Color("245")),
		Prompt:    r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		EditLabel: r.NewStyle().Foreground(lipgloss.Color("81")),
		renderer:  r,
	}
}

// LevelStyle returns the style for a node's bullet and name. A node color
// overrides the per-level default.
func (t Theme) LevelStyle(level model.Level, color string) lipgloss.Style {
	if color == "" {
		color = level.DefaultColor()
	}
	return t.renderer.NewStyle().Foreground(lipgloss.Color(color))
}
