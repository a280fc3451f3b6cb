package output

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C71F9")
	colorSuccess = lipgloss.Color("#34D399")
	colorError   = lipgloss.Color("#F87171")
	colorWarning = lipgloss.Color("#FBBF24")
	colorDim     = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#60A5FA")
)

var (
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)

	styleLabel = styleDim
	styleValue = lipgloss.NewStyle()

	styleStageLabel = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleAgentName  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	styleBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarning).
			Padding(0, 1)

	styleTableHeader = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleActive      = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	styleHint        = styleDim
)
