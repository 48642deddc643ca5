package ui

import (
	"strings"

	"github.com/srodi/os-atlas/pkg/types"
)

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	honeyOrange = "\033[38;5;214m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	fuchsia     = "\033[38;5;177m"
	alertRed    = "\033[38;5;196m"
	atlasGlow   = "\033[38;5;45m"
)

// Banner renders a colored os-atlas wordmark.
func Banner() string {
	var b strings.Builder

	atlasLetters := [][]string{
		{" █████╗ ", "██╔══██╗", "███████║", "██╔══██║", "██║  ██║", "╚═╝  ╚═╝"},
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
		{"██╗     ", "██║     ", "██║     ", "██║     ", "███████╗", "╚══════╝"},
		{" █████╗ ", "██╔══██╗", "███████║", "██╔══██║", "██║  ██║", "╚═╝  ╚═╝"},
		{"███████╗", "██╔════╝", "███████╗", "╚════██║", "███████║", "╚══════╝"},
	}
	atlasGradient := []string{atlasGlow, seafoam, mint, cobalt, deepIndigo, fuchsia}
	atlasRows := make([]string, len(atlasLetters[0]))
	for i, letter := range atlasLetters {
		color := atlasGradient[i%len(atlasGradient)]
		for row := 0; row < len(letter); row++ {
			atlasRows[row] += color + letter[row] + "  "
		}
	}
	for _, line := range atlasRows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + atlasGlow + "os-atlas" + reset + "  •  user-level system health lens\n\n")

	return b.String()
}

// Status colors a health status for terminal output.
func Status(s types.Status) string {
	switch s {
	case types.StatusCritical:
		return bold + alertRed + string(s) + reset
	case types.StatusDegraded:
		return bold + honeyOrange + string(s) + reset
	default:
		return bold + mint + string(s) + reset
	}
}
