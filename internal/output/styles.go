package output

import "github.com/charmbracelet/lipgloss"

// Terminal palette (ANSI 256).
const (
	colorPrimary = "12"
	colorSuccess = "10"
	colorError   = "9"
	colorWarning = "11"
	colorSubtle  = "8"
)

// styles holds the lipgloss styles a [Printer] renders with.
type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	label   lipgloss.Style
	subtle  lipgloss.Style
	id      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	if !color {
		plain := r.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary)),
		heading: r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color(colorError)).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		label:   r.NewStyle().Foreground(lipgloss.Color(colorSubtle)),
		subtle:  r.NewStyle().Foreground(lipgloss.Color(colorSubtle)).Italic(true),
		id:      r.NewStyle().Foreground(lipgloss.Color(colorPrimary)),
	}
}
