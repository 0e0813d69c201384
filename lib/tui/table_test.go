// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"testing"

	"github.com/bureau-foundation/backlog/lib/depgraph"
)

func TestPlainTableAlignsColumns(t *testing.T) {
	table := NewTable(DefaultTheme, true, "ID", "NAME", "STATE")
	table.Row(Text("1"), Text("Login form"), Colored("ready", DefaultTheme.StateReady))
	table.Row(Text("12"), Text("SSO"))

	var out strings.Builder
	if err := table.Render(&out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "" +
		"ID  NAME        STATE\n" +
		"---------------------\n" +
		"1   Login form  ready\n" +
		"12  SSO         \n"
	if out.String() != want {
		t.Errorf("Render output:\n%s\nwant:\n%s", out.String(), want)
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Error("plain table contains ANSI escapes")
	}
}

func TestRowTruncatesExtraCells(t *testing.T) {
	table := NewTable(DefaultTheme, true, "A")
	table.Row(Text("x"), Text("dropped"))
	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}
	var out strings.Builder
	if err := table.Render(&out); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "dropped") {
		t.Errorf("extra cell rendered: %q", out.String())
	}
}

func TestStateColor(t *testing.T) {
	theme := DefaultTheme
	if theme.StateColor(depgraph.StateBlocked) != theme.StateBlocked {
		t.Error("blocked state has wrong color")
	}
	if theme.StateColor("unknown") != theme.FaintText {
		t.Error("unknown state should be faint")
	}
}

func TestScoreColorBands(t *testing.T) {
	theme := DefaultTheme
	for _, test := range []struct {
		score float64
		band  int
	}{
		{1110, 0}, {1000, 0}, {999.9, 1}, {100, 1}, {10, 2}, {0, 2},
	} {
		if got := theme.ScoreColor(test.score); got != theme.ScoreColors[test.band] {
			t.Errorf("ScoreColor(%v) = %s, want band %d", test.score, got, test.band)
		}
	}
}
