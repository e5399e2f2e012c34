package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// Adaptive colors tuned for both light and dark terminals.
var (
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}

	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}

	// Node kind colors
	ColorSolution = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorProject  = lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"}
	ColorFolder   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorFile     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	headerCountStyle = lipgloss.NewStyle().
				Foreground(ColorMuted)

	selectedRowStyle = lipgloss.NewStyle().
				Background(ColorBgHighlight).
				Bold(true)

	branchStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext)

	statusNoticeStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(ColorDanger)

	workingStyle = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	helpHintStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	solutionStyle = lipgloss.NewStyle().Foreground(ColorSolution).Bold(true)
	projectStyle  = lipgloss.NewStyle().Foreground(ColorProject)
	folderStyle   = lipgloss.NewStyle().Foreground(ColorFolder)
	fileStyle     = lipgloss.NewStyle().Foreground(ColorFile)
)

func kindStyle(k tree.Kind) lipgloss.Style {
	switch k {
	case tree.KindSolution:
		return solutionStyle
	case tree.KindProject:
		return projectStyle
	case tree.KindFolder:
		return folderStyle
	default:
		return fileStyle
	}
}

// kindGlyph returns the marker rendered before a node label.
func kindGlyph(k tree.Kind, state tree.CollapseState) string {
	switch {
	case state == tree.Expanded:
		return "▾"
	case state == tree.Collapsed:
		return "▸"
	case k == tree.KindProject:
		return "◆"
	default:
		return "·"
	}
}
