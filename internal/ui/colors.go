package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/samse/lottiekit/internal/render"
)

const (
	accent  = "#7D56F4"
	green   = "#04B575"
	red     = "#FF0000"
	orange  = "#FFA500"
	muted   = "#626262"
	barFrom = "#5A56E0"
	barTo   = "#EE6FF8"
)

var styles = newPalette()

// palette holds the player's styles; modes colors the active render mode.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	modes map[render.Mode]lipgloss.Style
}

func newPalette() *palette {
	return &palette{
		title: fg(accent).Bold(true).MarginBottom(1),
		ok:    fg(green).Bold(true),
		err:   fg(red).Bold(true),
		warn:  fg(orange),
		help:  fg(muted).Italic(true),
		label: fg(muted).Width(14),
		modes: map[render.Mode]lipgloss.Style{
			render.Hardware: fg(green),
			render.Software: fg(orange),
		},
	}
}

// mode renders m in its color; unknown modes are left plain.
func (p *palette) mode(m render.Mode) string {
	if s, ok := p.modes[m]; ok {
		return s.Render(m.String())
	}
	return m.String()
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}
