package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles are the colors of the status view, bound to one renderer so the
// color profile follows the output it is written to.
type Styles struct {
	ID         lipgloss.Style
	CardType   lipgloss.Style
	Power      lipgloss.Style
	ChipName   lipgloss.Style
	Temp       lipgloss.Style
	TempHot    lipgloss.Style
	HealthOK   lipgloss.Style
	HealthBad  lipgloss.Style
	AICore     lipgloss.Style
	AICoreBusy lipgloss.Style
	MemUsed    lipgloss.Style
	MemTotal   lipgloss.Style
	Unknown    lipgloss.Style
	Hostname   lipgloss.Style
	Version    lipgloss.Style
	Title      lipgloss.Style
	Footer     lipgloss.Style
	Error      lipgloss.Style
}

// NewRenderer returns a renderer for w. With force set, ANSI colors are
// emitted even when w is not a terminal.
func NewRenderer(w io.Writer, force bool) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if force {
		r.SetColorProfile(termenv.ANSI256)
	}
	return r
}

func NewStyles(r *lipgloss.Renderer) Styles {
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return Styles{
		ID:         fg("6"),
		CardType:   fg("15").Bold(true),
		Power:      fg("5"),
		ChipName:   fg("4"),
		Temp:       fg("1"),
		TempHot:    fg("1").Bold(true),
		HealthOK:   fg("2"),
		HealthBad:  fg("1").Bold(true),
		AICore:     fg("2"),
		AICoreBusy: fg("2").Bold(true),
		MemUsed:    fg("3").Bold(true),
		MemTotal:   fg("3"),
		Unknown:    r.NewStyle().Faint(true),
		Hostname:   fg("15").Bold(true),
		Version:    fg("8"),
		Title:      fg("7"),
		Footer:     fg("240"),
		Error:      fg("9").Bold(true),
	}
}
