// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/backlog/lib/depgraph"
)

// Theme is the color palette for backlog output. All colors are ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	// Feature states.
	StatePassing    lipgloss.Color
	StateInProgress lipgloss.Color
	StateReady      lipgloss.Color
	StateBlocked    lipgloss.Color

	// Graph problems: circular and missing dependencies.
	Cycle   lipgloss.Color
	Missing lipgloss.Color

	// Score bands, highest first. See ScoreColor.
	ScoreColors [3]lipgloss.Color
}

// StateColor returns the color for a feature state, or FaintText for
// an unknown one.
func (theme Theme) StateColor(state depgraph.State) lipgloss.Color {
	switch state {
	case depgraph.StatePassing:
		return theme.StatePassing
	case depgraph.StateInProgress:
		return theme.StateInProgress
	case depgraph.StateReady:
		return theme.StateReady
	case depgraph.StateBlocked:
		return theme.StateBlocked
	default:
		return theme.FaintText
	}
}

// ScoreColor buckets a scheduling score: 1000 and up means the
// feature unblocks the most downstream work in the backlog, 100 and
// up means it sits on a deep chain.
func (theme Theme) ScoreColor(score float64) lipgloss.Color {
	switch {
	case score >= 1000:
		return theme.ScoreColors[0]
	case score >= 100:
		return theme.ScoreColors[1]
	default:
		return theme.ScoreColors[2]
	}
}

// DefaultTheme is the built-in dark-terminal scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),

	StatePassing:    lipgloss.Color("114"), // green
	StateInProgress: lipgloss.Color("220"), // amber
	StateReady:      lipgloss.Color("75"),  // blue
	StateBlocked:    lipgloss.Color("196"), // red

	Cycle:   lipgloss.Color("196"),
	Missing: lipgloss.Color("208"), // orange

	ScoreColors: [3]lipgloss.Color{
		lipgloss.Color("208"),
		lipgloss.Color("75"),
		lipgloss.Color("245"),
	},
}
