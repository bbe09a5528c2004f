package output

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("39")
	colorPass   = lipgloss.Color("42")
	colorNote   = lipgloss.Color("214")
	colorFail   = lipgloss.Color("196")
	colorDim    = lipgloss.Color("245")
	colorText   = lipgloss.Color("255")
)

// frame is a rounded box in the given border color.
func frame(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

var (
	headerBox = frame(colorAccent).MarginBottom(1)
	passBox   = frame(colorPass).MarginTop(1)
	failBox   = frame(colorFail).MarginTop(1)
	opStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	keyStyle  = lipgloss.NewStyle().Foreground(colorDim)
	valStyle  = lipgloss.NewStyle().Foreground(colorText)
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPass)
	noteStyle = lipgloss.NewStyle().Foreground(colorNote)
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	hintStyle = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
)
