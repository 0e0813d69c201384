// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/featurestore"
)

// depCommand returns the "dep" group for editing dependency edges.
func depCommand(app *App) *cli.Command {
	return &cli.Command{
		Name:    "dep",
		Summary: "Manage feature dependencies",
		Description: `Add, remove, replace, or test dependency edges. "A depends on B"
means B must pass before A is ready.

Every change is checked against the current backlog: both features
must exist, the edge must not repeat, the dependency limit holds, and
the edge must not close a cycle.`,
		Subcommands: []*cli.Command{
			depEdgeCommand(app, "add", "Add a dependency",
				`Make <id> depend on <depends-on>. Rejected if it would create a cycle.`,
				"now depends on",
				func(s *session, id, dependsOn int64) error {
					return s.store.AddDependency(app.context(), id, dependsOn)
				}),
			depEdgeCommand(app, "remove", "Remove a dependency",
				`Remove the edge "<id> depends on <depends-on>".`,
				"no longer depends on",
				func(s *session, id, dependsOn int64) error {
					return s.store.RemoveDependency(app.context(), id, dependsOn)
				}),
			depSetCommand(app),
			depCheckCommand(app),
		},
	}
}

type depParams struct {
	StoreOptions
	cli.JSONOutput
}

type edgeResult struct {
	ID           int64   `json:"id"`
	DependsOn    int64   `json:"depends_on"`
	Dependencies []int64 `json:"dependencies"`
}

func depEdgeCommand(app *App, name, summary, description, verb string, apply func(s *session, id, dependsOn int64) error) *cli.Command {
	var params depParams
	usage := fmt.Sprintf("backlog dep %s <id> <depends-on> [flags]", name)

	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Usage:       usage,
		Flags:       func() *pflag.FlagSet { return cli.FlagsFromParams("dep "+name, &params) },
		Run: func(args []string) error {
			id, dependsOn, err := parseEdge(args, usage)
			if err != nil {
				return err
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				if err := apply(s, id, dependsOn); err != nil {
					return err
				}
				dependencies, err := currentDependencies(app, s, id)
				if err != nil {
					return err
				}
				result := edgeResult{ID: id, DependsOn: dependsOn, Dependencies: dependencies}
				if done, err := params.EmitJSON(app.Stdout, result); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "Feature %d %s feature %d (dependencies: %s)\n",
					id, verb, dependsOn, formatIDs(dependencies))
				return nil
			})
		},
	}
}

func parseEdge(args []string, usage string) (int64, int64, error) {
	if err := requireArgs(args, 2, usage); err != nil {
		return 0, 0, err
	}
	id, err := parseID("feature ID", args[0])
	if err != nil {
		return 0, 0, err
	}
	dependsOn, err := parseID("dependency ID", args[1])
	if err != nil {
		return 0, 0, err
	}
	return id, dependsOn, nil
}

func currentDependencies(app *App, s *session, id int64) ([]int64, error) {
	snapshot, err := s.store.Snapshot(app.context())
	if err != nil {
		return nil, err
	}
	f, ok := snapshot.Feature(id)
	if !ok {
		return nil, fmt.Errorf("feature %d: %w", id, featurestore.ErrNotFound)
	}
	return f.Dependencies, nil
}

// --- dep set ---

func depSetCommand(app *App) *cli.Command {
	var params depParams
	const usage = "backlog dep set <id> [depends-on...] [flags]"

	return &cli.Command{
		Name:    "set",
		Summary: "Replace a feature's dependencies",
		Description: `Replace the whole dependency list of <id>. With no further IDs the
feature's dependencies are cleared. The new list is checked as a
unit; if any edge is rejected the old list stays.`,
		Usage: usage,
		Examples: []cli.Example{
			{Description: "Feature 7 now waits on 2 and 5 only", Command: "backlog dep set 7 2 5"},
			{Description: "Clear feature 7's dependencies", Command: "backlog dep set 7"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("dep set", &params) },
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("feature ID is required\n\nUsage: %s", usage)
			}
			id, err := parseID("feature ID", args[0])
			if err != nil {
				return err
			}
			dependencies := []int64{}
			for _, arg := range args[1:] {
				dependsOn, err := parseID("dependency ID", arg)
				if err != nil {
					return err
				}
				dependencies = append(dependencies, dependsOn)
			}

			return app.withSession(&params.StoreOptions, func(s *session) error {
				if err := s.store.SetDependencies(app.context(), id, dependencies); err != nil {
					return err
				}
				stored, err := currentDependencies(app, s, id)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(app.Stdout, edgeResult{ID: id, Dependencies: stored}); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "Feature %d dependencies: %s\n", id, formatIDs(stored))
				return nil
			})
		},
	}
}

// --- dep check ---

type checkResult struct {
	ID         int64 `json:"id"`
	DependsOn  int64 `json:"depends_on"`
	WouldCycle bool  `json:"would_cycle"`
}

func depCheckCommand(app *App) *cli.Command {
	var params depParams
	const usage = "backlog dep check <id> <depends-on> [flags]"

	return &cli.Command{
		Name:    "check",
		Summary: "Test whether a dependency would create a cycle",
		Description: `Report whether making <id> depend on <depends-on> would close a
cycle, without changing anything. Exits with status 1 when it would.

The answer reflects the backlog at the moment of the check; "dep add"
checks again before it commits. Chains deeper than the configured
depth limit cannot be proven safe and are reported as cycles.`,
		Usage: usage,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("dep check", &params) },
		Run: func(args []string) error {
			id, dependsOn, err := parseEdge(args, usage)
			if err != nil {
				return err
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				for _, check := range []int64{id, dependsOn} {
					if _, ok := snapshot.Feature(check); !ok {
						return fmt.Errorf("feature %d: %w", check, featurestore.ErrNotFound)
					}
				}

				result := checkResult{
					ID:         id,
					DependsOn:  dependsOn,
					WouldCycle: s.store.Engine().WouldCreateCycle(snapshot.Nodes(), id, dependsOn),
				}
				if done, err := params.EmitJSON(app.Stdout, result); done {
					if err != nil {
						return err
					}
				} else if result.WouldCycle {
					fmt.Fprintf(app.Stdout, "Feature %d depending on feature %d would create a cycle\n", id, dependsOn)
				} else {
					f, _ := snapshot.Feature(id)
					note := ""
					if slices.Contains(f.Dependencies, dependsOn) {
						note = " (already present)"
					}
					fmt.Fprintf(app.Stdout, "Feature %d can depend on feature %d%s\n", id, dependsOn, note)
				}
				if result.WouldCycle {
					return &cli.ExitError{Code: 1}
				}
				return nil
			})
		},
	}
}
