// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommandDispatchesToSubcommand(t *testing.T) {
	var called string
	root := &Command{
		Name: "backlog",
		Subcommands: []*Command{
			{Name: "ready", Run: func(args []string) error { called = "ready"; return nil }},
			{Name: "next", Run: func(args []string) error { called = "next"; return nil }},
		},
	}

	if err := root.Execute([]string{"next"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "next" {
		t.Errorf("dispatched to %q, want %q", called, "next")
	}
}

func TestCommandNestedSubcommands(t *testing.T) {
	var receivedArgs []string
	root := &Command{
		Name: "backlog",
		Subcommands: []*Command{
			{
				Name: "dep",
				Subcommands: []*Command{
					{Name: "add", Run: func(args []string) error { receivedArgs = args; return nil }},
				},
			},
		},
	}

	if err := root.Execute([]string{"dep", "add", "3", "1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(receivedArgs) != 2 || receivedArgs[0] != "3" || receivedArgs[1] != "1" {
		t.Errorf("args = %v, want [3 1]", receivedArgs)
	}
}

func TestCommandFlagParsing(t *testing.T) {
	var params struct {
		Limit int  `flag:"limit,n" desc:"maximum entries"`
		JSON  bool `flag:"json" desc:"output as JSON"`
	}
	var positional []string
	command := &Command{
		Name:  "ready",
		Flags: func() *pflag.FlagSet { return FlagsFromParams("ready", &params) },
		Run: func(args []string) error {
			positional = args
			return nil
		},
	}

	if err := command.Execute([]string{"-n", "5", "--json", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if params.Limit != 5 || !params.JSON {
		t.Errorf("params = %+v, want Limit 5 and JSON", params)
	}
	if len(positional) != 1 || positional[0] != "extra" {
		t.Errorf("positional = %v, want [extra]", positional)
	}
}

func TestCommandUnknownSubcommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "backlog",
		Subcommands: []*Command{{Name: "blocked", Run: func([]string) error { return nil }}},
	}

	err := root.Execute([]string{"blcoked"})
	if err == nil {
		t.Fatal("Execute succeeded for an unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "blocked"?`) {
		t.Errorf("error %q does not suggest blocked", err)
	}
}

func TestCommandUnknownFlagSuggests(t *testing.T) {
	var params struct {
		Name string `flag:"name" desc:"feature name"`
	}
	command := &Command{
		Name:  "add",
		Flags: func() *pflag.FlagSet { return FlagsFromParams("add", &params) },
		Run:   func([]string) error { return nil },
	}

	err := command.Execute([]string{"--nmae", "login"})
	if err == nil {
		t.Fatal("Execute succeeded with an unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --name?") {
		t.Errorf("error %q does not suggest --name", err)
	}
}

func TestCommandGroupRequiresSubcommand(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:       "backlog",
		HelpOutput: &help,
		Subcommands: []*Command{
			{
				Name:        "dep",
				Summary:     "Manage dependencies",
				Subcommands: []*Command{{Name: "add", Summary: "Add an edge"}},
			},
		},
	}

	err := root.Execute([]string{"dep"})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("Execute error = %v, want subcommand required", err)
	}
	// Help is written through the inherited writer.
	if !strings.Contains(help.String(), "backlog dep <command>") {
		t.Errorf("help output missing usage line:\n%s", help.String())
	}
	if !strings.Contains(help.String(), "Add an edge") {
		t.Errorf("help output missing subcommand listing:\n%s", help.String())
	}
}

func TestCommandHelpFlag(t *testing.T) {
	var help bytes.Buffer
	var params struct {
		State string `flag:"state" desc:"filter by state"`
	}
	command := &Command{
		Name:        "list",
		Description: "List features in priority order.",
		HelpOutput:  &help,
		Flags:       func() *pflag.FlagSet { return FlagsFromParams("list", &params) },
		Examples:    []Example{{Description: "Blocked work", Command: "backlog list --state blocked"}},
		Run: func([]string) error {
			t.Error("Run called for --help")
			return nil
		},
	}

	if err := command.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"List features in priority order.", "--state", "# Blocked work"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, help.String())
		}
	}
}

func TestCommandReturnsRunError(t *testing.T) {
	sentinel := errors.New("boom")
	command := &Command{Name: "next", Run: func([]string) error { return &ExitError{Code: 1} }}
	err := command.Execute(nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("Execute error = %v, want ExitError{1}", err)
	}

	command.Run = func([]string) error { return sentinel }
	if err := command.Execute(nil); !errors.Is(err, sentinel) {
		t.Errorf("Execute error = %v, want sentinel", err)
	}
}
