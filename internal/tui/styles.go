// Package tui provides shared terminal styling for tracewire.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night inspired color palette
var (
	ColorBg      = lipgloss.Color("#1a1b26")
	ColorBgAlt   = lipgloss.Color("#24283b")
	ColorFg      = lipgloss.Color("#c0caf5")
	ColorFgMuted = lipgloss.Color("#565f89")
	ColorGreen   = lipgloss.Color("#9ece6a")
	ColorBlue    = lipgloss.Color("#7aa2f7")
	ColorRed     = lipgloss.Color("#f7768e")
	ColorYellow  = lipgloss.Color("#e0af68")
	ColorPurple  = lipgloss.Color("#bb9af7")
	ColorCyan    = lipgloss.Color("#7dcfff")
	ColorAccent  = lipgloss.Color("#d4a373")
)

// Common styles
var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorFg).
			Bold(true)

	StyleLogo = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleColumnHeader = lipgloss.NewStyle().
				Foreground(ColorFgMuted).
				Bold(true)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorBgAlt).
			Foreground(ColorFg)

	StyleSelectedIndicator = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	StyleNormal = lipgloss.NewStyle().
			Foreground(ColorFg)

	StyleSecondary = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	StyleAccent = lipgloss.NewStyle().
			Foreground(ColorAccent)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleInfo = lipgloss.NewStyle().
			Foreground(ColorBlue)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorYellow)

	StyleDanger = lipgloss.NewStyle().
			Foreground(ColorRed)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	StyleTabActive = lipgloss.NewStyle().
			Foreground(ColorFg).
			Bold(true)

	StyleTabInactive = lipgloss.NewStyle().
				Foreground(ColorFgMuted)

	StyleEmptyState = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			Italic(true)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFgMuted).
			Padding(1, 2)
)

// SegmentColor returns the color for a segment type name.
func SegmentColor(segType string) lipgloss.Color {
	switch segType {
	case "analysis_result":
		return ColorPurple
	case "node_status":
		return ColorBlue
	case "tool_execution":
		return ColorCyan
	case "file_generated":
		return ColorGreen
	case "agent_thinking":
		return ColorFgMuted
	case "system_message":
		return ColorYellow
	default:
		return ColorFg
	}
}

// SegmentStyle returns styled text for a segment type name.
func SegmentStyle(segType string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(SegmentColor(segType))
}

// Divider returns a horizontal rule of the given width.
func Divider(width int) string {
	if width < 1 {
		width = 1
	}
	return StyleMuted.Render(strings.Repeat("─", width))
}
