package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/modeltree/pkg/document"
)

// TermProfile holds the detected terminal color profile.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns hex on ANSI256+ terminals and plain white below that.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme holds every style the tree view draws with.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor

	// Value kinds
	Key     lipgloss.AdaptiveColor
	String  lipgloss.AdaptiveColor
	Number  lipgloss.AdaptiveColor
	Boolean lipgloss.AdaptiveColor
	Date    lipgloss.AdaptiveColor
	Null    lipgloss.AdaptiveColor

	Selected    lipgloss.Style
	Header      lipgloss.Style
	Branch      lipgloss.Style
	MutedText   lipgloss.Style
	ErrorText   lipgloss.Style
	Match       lipgloss.Style
	ActiveMatch lipgloss.Style
	ModeView    lipgloss.Style
	ModeEdit    lipgloss.Style
	Detail      lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary: lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Muted:   lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Border:  lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Error:   lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Key:     lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		String:  lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Number:  lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Boolean: lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Date:    lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"},
		Null:    lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6272A4"},
	}

	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}).
		Bold(true)
	t.Header = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Branch = r.NewStyle().Foreground(t.Muted)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.ErrorText = r.NewStyle().Foreground(t.Error).Bold(true)
	t.Match = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#282A36"}).
		Background(lipgloss.AdaptiveColor{Light: "#FFD580", Dark: "#FFB86C"})
	t.ActiveMatch = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#282A36"}).
		Background(lipgloss.AdaptiveColor{Light: "#F5E050", Dark: "#F1FA8C"}).
		Bold(true)
	t.ModeView = r.NewStyle().Padding(0, 1).
		Foreground(ThemeFg("#282A36")).
		Background(t.Muted)
	t.ModeEdit = r.NewStyle().Padding(0, 1).
		Foreground(ThemeFg("#282A36")).
		Background(t.String)
	t.Detail = r.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(t.Border)
	return t
}

// KindStyle returns the style for values of kind k.
func (t Theme) KindStyle(k document.Kind) lipgloss.Style {
	var c lipgloss.AdaptiveColor
	switch k {
	case document.KindString:
		c = t.String
	case document.KindNumber:
		c = t.Number
	case document.KindBoolean:
		c = t.Boolean
	case document.KindDate:
		c = t.Date
	case document.KindNull:
		c = t.Null
	default:
		c = t.Muted
	}
	return t.Renderer.NewStyle().Foreground(c)
}
