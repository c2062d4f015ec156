// Package ui renders terminal output of the booster CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dosanma1/forge-booster/internal/graph"
)

// Colors and styles
var (
	ColorBlue   = lipgloss.Color("63")  // 🔧 Tasks
	ColorPurple = lipgloss.Color("141") // 📦 Artifacts
	ColorGreen  = lipgloss.Color("42")  // ✅ Success
	ColorYellow = lipgloss.Color("220") // ⚠️  Warning
	ColorRed    = lipgloss.Color("196") // ❌ Error
	ColorGray   = lipgloss.Color("240") // Subtle text

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	KeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			PaddingLeft(2)

	// Emoji icons
	IconTool    = "🔧"
	IconSuccess = "✅"
	IconWarning = "⚠️ "
	IconError   = "❌"
	IconRocket  = "🚀"
	IconPackage = "📦"
	IconSkip    = "⏭️ "
	IconWatch   = "👀"
)

// OutcomeStyle returns the icon and style used for a task outcome.
func OutcomeStyle(o graph.Outcome) (string, lipgloss.Style) {
	switch o {
	case graph.OutcomeExecuted:
		return IconSuccess, SuccessStyle
	case graph.OutcomeUpToDate, graph.OutcomeNoSource:
		return IconSkip, HelpStyle
	case graph.OutcomeFailed:
		return IconError, ErrorStyle
	default:
		return IconWarning, WarningStyle
	}
}
