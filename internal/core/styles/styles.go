// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.TerminalColor
	Foreground lipgloss.TerminalColor
	Muted      lipgloss.TerminalColor
	Success    lipgloss.TerminalColor
	Warning    lipgloss.TerminalColor
	Error      lipgloss.TerminalColor
}

// DefaultPalette adapts to light and dark terminals.
var DefaultPalette = Palette{
	Primary:    lipgloss.AdaptiveColor{Light: "#2e59c9", Dark: "#7aa2f7"},
	Foreground: lipgloss.AdaptiveColor{Light: "#1a1b26", Dark: "#c0caf5"},
	Muted:      lipgloss.AdaptiveColor{Light: "#6b6f85", Dark: "#565f89"},
	Success:    lipgloss.AdaptiveColor{Light: "#387215", Dark: "#9ece6a"},
	Warning:    lipgloss.AdaptiveColor{Light: "#8f5e15", Dark: "#e0af68"},
	Error:      lipgloss.AdaptiveColor{Light: "#c0243c", Dark: "#f7768e"},
}

// Text styles used by the doctor and check commands.
var (
	TextPrimaryBoldStyle    lipgloss.Style
	TextForegroundBoldStyle lipgloss.Style
	TextMutedStyle          lipgloss.Style
	TextSuccessStyle        lipgloss.Style
	TextWarningStyle        lipgloss.Style
	TextErrorStyle          lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	TextPrimaryBoldStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	TextForegroundBoldStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true)
	TextMutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	TextSuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	TextWarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	TextErrorStyle = lipgloss.NewStyle().Foreground(p.Error)
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(DefaultPalette)
}
