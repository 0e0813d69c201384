// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui renders backlog query results for the terminal.
//
// [Theme] maps feature states, cycles, and scores to lipgloss colors.
// [Table] lays out rows in aligned columns, coloring cells from the
// theme when writing to a terminal and emitting plain text otherwise,
// so piped output stays greppable.
package tui
