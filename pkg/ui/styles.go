// Package ui provides the Bubble Tea dashboard for watch mode and the
// palette shared with console output.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
)

// Colors
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#10B981") // Green
	ColorDanger    = lipgloss.Color("#EF4444") // Red
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorMuted     = lipgloss.Color("#6B7280") // Gray
	ColorBorder    = lipgloss.Color("#374151") // Dark gray
)

// Styles
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	FullFillStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	PartialFillStyle = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	NoFillStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	MutedValue = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger)

	PausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWarning)
)

// OutcomeStyle colors a fill outcome: green full, amber partial, red none.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case app.OutcomeFull:
		return FullFillStyle
	case app.OutcomePartial:
		return PartialFillStyle
	default:
		return NoFillStyle
	}
}
