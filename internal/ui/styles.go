package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the editor.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorOrange  = lipgloss.Color("#FFA500")
	ColorBlue    = lipgloss.Color("#5F87FF")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	PartialTextStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)

	SelectedStyle = lipgloss.NewStyle().
			Reverse(true)

	CaretStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LevelGreenStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	LevelYellowStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	LevelGrayStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	MicLabelStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	DirtyBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	SavedBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	UnknownSpeakerStyle = lipgloss.NewStyle().
				Foreground(ColorGray).
				Bold(true)
)

var speakerColors = []lipgloss.Color{ColorCyan, ColorMagenta, ColorGreen, ColorOrange, ColorBlue, ColorYellow}

// SpeakerStyle returns the label style for the i-th distinct speaker.
func SpeakerStyle(i int) lipgloss.Style {
	if i < 0 {
		return UnknownSpeakerStyle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(speakerColors[i%len(speakerColors)])
}
