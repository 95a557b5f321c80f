package view

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme represents the color theme for the viewer
type Theme struct {
	Primary     lipgloss.AdaptiveColor
	Secondary   lipgloss.AdaptiveColor
	Success     lipgloss.AdaptiveColor
	Warning     lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Info        lipgloss.AdaptiveColor
	HighlightLo lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor
	Text        lipgloss.AdaptiveColor
	TextDim     lipgloss.AdaptiveColor
}

// GruvboxTheme creates a Gruvbox-inspired theme
func GruvboxTheme() Theme {
	return Theme{
		Primary: lipgloss.AdaptiveColor{
			Light: "#79740e", // green
			Dark:  "#b8bb26",
		},
		Secondary: lipgloss.AdaptiveColor{
			Light: "#af3a03", // orange
			Dark:  "#fe8019",
		},
		Success: lipgloss.AdaptiveColor{
			Light: "#98971a",
			Dark:  "#b8bb26",
		},
		Warning: lipgloss.AdaptiveColor{
			Light: "#d79921",
			Dark:  "#fabd2f",
		},
		Error: lipgloss.AdaptiveColor{
			Light: "#cc241d",
			Dark:  "#fb4934",
		},
		Info: lipgloss.AdaptiveColor{
			Light: "#458588",
			Dark:  "#83a598",
		},
		HighlightLo: lipgloss.AdaptiveColor{
			Light: "#d5c4a1",
			Dark:  "#3c3836",
		},
		Border: lipgloss.AdaptiveColor{
			Light: "#d5c4a1",
			Dark:  "#504945",
		},
		Text: lipgloss.AdaptiveColor{
			Light: "#3c3836",
			Dark:  "#fbf1c7",
		},
		TextDim: lipgloss.AdaptiveColor{
			Light: "#7c6f64",
			Dark:  "#a89984",
		},
	}
}

// DefaultTheme is the default theme for the viewer
var DefaultTheme = GruvboxTheme()

// Styles contains predefined styles for the viewer
type Styles struct {
	StatusText lipgloss.Style
	Title      lipgloss.Style
	Paragraph  lipgloss.Style
	Subtle     lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Spinner    lipgloss.Style
	StatusBar  lipgloss.Style
	Header     lipgloss.Style
}

// DefaultStyles returns default styles for the viewer
func DefaultStyles() Styles {
	theme := DefaultTheme

	return Styles{
		StatusText: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text),

		Paragraph: lipgloss.NewStyle().
			Foreground(theme.Text),

		Subtle: lipgloss.NewStyle().
			Foreground(theme.TextDim),

		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Warning),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Secondary),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Text).
			Background(theme.HighlightLo).
			PaddingLeft(1).
			PaddingRight(1),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			PaddingLeft(1).
			PaddingRight(1),
	}
}
