// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/featurestore"
	"github.com/bureau-foundation/backlog/lib/schema/feature"
	"github.com/bureau-foundation/backlog/lib/tui"
)

// --- add ---

type addParams struct {
	StoreOptions
	cli.JSONOutput
	Name        string   `flag:"name" desc:"feature name (required)"`
	Category    string   `flag:"category" desc:"feature category (required)"`
	Description string   `flag:"description" desc:"what the feature does (required)"`
	Steps       []string `flag:"step" desc:"verification step; repeat for each step (required)"`
	DependsOn   []int64  `flag:"depends-on" desc:"IDs of features this one depends on"`
}

func addCommand(app *App) *cli.Command {
	var params addParams

	return &cli.Command{
		Name:    "add",
		Summary: "Add a feature at the end of the backlog",
		Description: `Add one feature. It receives the next free priority, one past
the current maximum, so it sorts after everything already queued.

Dependencies must name existing features. The backlog rejects the
feature when a dependency is unknown, repeated, or over the limit.`,
		Usage: "backlog add --name <name> --category <category> --description <text> --step <step>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Add a feature that waits on features 1 and 2",
				Command:     `backlog add --name "Password reset" --category auth --description "Reset by email" --step "Request a reset link" --step "Set a new password" --depends-on 1,2`,
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("add", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			entry := feature.NewFeature{
				Category:    params.Category,
				Name:        params.Name,
				Description: params.Description,
				Steps:       params.Steps,
				DependsOn:   params.DependsOn,
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				s.lockUsed = true
				created, err := s.store.Create(app.context(), []feature.NewFeature{entry})
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(app.Stdout, created[0]); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "Created feature %d (priority %d): %s\n",
					created[0].ID, created[0].Priority, created[0].Name)
				return nil
			})
		},
	}
}

// --- import ---

type importParams struct {
	StoreOptions
	cli.JSONOutput
}

func importCommand(app *App) *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Add a batch of features from a JSON file",
		Description: `Add every feature in a JSON array in one transaction. Comments and
trailing commas are allowed. Each entry has "category", "name",
"description", and "steps", plus optional "depends_on" (IDs already
in the backlog) and "depends_on_indices" (zero-based positions of
earlier entries in the same file).

Priorities continue from the current maximum in file order. If any
entry is rejected, nothing is added. Use "-" to read standard input.`,
		Usage: "backlog import <file.jsonc> [flags]",
		Examples: []cli.Example{
			{
				Description: "Seed the backlog from a plan",
				Command:     "backlog import plan.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("import", &params) },
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "backlog import <file.jsonc>"); err != nil {
				return err
			}
			data, err := readInput(app, args[0])
			if err != nil {
				return err
			}
			batch, err := decodeImport(data)
			if err != nil {
				return err
			}

			return app.withSession(&params.StoreOptions, func(s *session) error {
				s.lockUsed = true
				created, err := s.store.Create(app.context(), batch)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(app.Stdout, created); done {
					return err
				}
				table := app.table("ID", "PRIORITY", "CATEGORY", "NAME", "DEPENDS ON")
				for _, f := range created {
					table.Row(
						tui.Text(strconv.FormatInt(f.ID, 10)),
						tui.Text(strconv.Itoa(f.Priority)),
						tui.Text(f.Category),
						tui.Text(f.Name),
						tui.Text(formatIDs(f.Dependencies)),
					)
				}
				fmt.Fprintf(app.Stdout, "Imported %d features\n", len(created))
				return table.Render(app.Stdout)
			})
		},
	}
}

func readInput(app *App, path string) ([]byte, error) {
	if path == "-" {
		stdin := app.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}
	return data, nil
}

// decodeImport parses a JSON-with-comments array of new features.
// Unknown fields are rejected so a misspelled "depends_on" does not
// silently drop a dependency.
func decodeImport(data []byte) ([]feature.NewFeature, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var batch []feature.NewFeature
	if err := decoder.Decode(&batch); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("parsing import file: unexpected data after the feature array")
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("import file contains no features")
	}
	return batch, nil
}

// --- list ---

type listParams struct {
	StoreOptions
	cli.JSONOutput
	State    string `flag:"state" desc:"only features in this state: passing, in_progress, ready, blocked"`
	Category string `flag:"category" desc:"only features in this category"`
}

// listEntry is a feature with its classified state.
type listEntry struct {
	feature.Feature
	State depgraph.State `json:"state"`
}

func listCommand(app *App) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List features in priority order",
		Description: `List every feature ordered by priority, then ID, with its state:
passing, in_progress, ready (every present dependency passes), or
blocked.`,
		Usage: "backlog list [flags]",
		Examples: []cli.Example{
			{Description: "Show blocked work", Command: "backlog list --state blocked"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.State != "" && !validState(depgraph.State(params.State)) {
				return fmt.Errorf("unknown state %q (want passing, in_progress, ready, or blocked)", params.State)
			}

			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				states := s.store.Engine().Classify(snapshot.Nodes())

				entries := []listEntry{}
				for _, f := range byPriority(snapshot.Features()) {
					state := states[f.ID]
					if params.State != "" && state != depgraph.State(params.State) {
						continue
					}
					if params.Category != "" && f.Category != params.Category {
						continue
					}
					entries = append(entries, listEntry{Feature: f, State: state})
				}

				if done, err := params.EmitJSON(app.Stdout, entries); done {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(app.Stdout, "No features.")
					return nil
				}
				table := app.table("ID", "PRIORITY", "STATE", "CATEGORY", "NAME", "DEPENDS ON")
				for _, entry := range entries {
					table.Row(
						tui.Text(strconv.FormatInt(entry.ID, 10)),
						tui.Text(strconv.Itoa(entry.Priority)),
						tui.Colored(string(entry.State), app.Theme.StateColor(entry.State)),
						tui.Text(entry.Category),
						tui.Text(entry.Name),
						tui.Text(formatIDs(entry.Dependencies)),
					)
				}
				return table.Render(app.Stdout)
			})
		},
	}
}

func validState(state depgraph.State) bool {
	switch state {
	case depgraph.StatePassing, depgraph.StateInProgress, depgraph.StateReady, depgraph.StateBlocked:
		return true
	}
	return false
}

// byPriority returns a copy of features ordered by priority, then ID.
func byPriority(features []feature.Feature) []feature.Feature {
	sorted := slices.Clone(features)
	slices.SortFunc(sorted, func(a, b feature.Feature) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

// --- show ---

type showParams struct {
	StoreOptions
	cli.JSONOutput
}

type showResult struct {
	feature.Feature
	State      depgraph.State `json:"state"`
	BlockedBy  []int64        `json:"blocked_by"`
	Dependents []int64        `json:"dependents"`
	Score      float64        `json:"score"`
}

func showCommand(app *App) *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show one feature with its graph context",
		Description: `Show a feature's fields, state, the dependencies still blocking it,
the features that depend on it, and its scheduling score.`,
		Usage: "backlog show <id> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("show", &params) },
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "backlog show <id>"); err != nil {
				return err
			}
			id, err := parseID("feature ID", args[0])
			if err != nil {
				return err
			}

			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				f, ok := snapshot.Feature(id)
				if !ok {
					return fmt.Errorf("feature %d: %w", id, featurestore.ErrNotFound)
				}

				engine := s.store.Engine()
				nodes := snapshot.Nodes()
				result := showResult{
					Feature:    f,
					State:      engine.Classify(nodes)[id],
					BlockedBy:  engine.Blocked(nodes)[id],
					Dependents: depgraph.Build(nodes).Dependents(id),
					Score:      engine.Scores(nodes)[id],
				}
				if result.BlockedBy == nil {
					result.BlockedBy = []int64{}
				}
				if result.Dependents == nil {
					result.Dependents = []int64{}
				}

				if done, err := params.EmitJSON(app.Stdout, result); done {
					return err
				}
				writeShow(app.Stdout, result)
				return nil
			})
		},
	}
}

func writeShow(w io.Writer, result showResult) {
	fmt.Fprintf(w, "Feature %d: %s\n", result.ID, result.Name)
	fmt.Fprintf(w, "  category:    %s\n", result.Category)
	fmt.Fprintf(w, "  priority:    %d\n", result.Priority)
	fmt.Fprintf(w, "  state:       %s\n", result.State)
	fmt.Fprintf(w, "  depends on:  %s\n", formatIDs(result.Dependencies))
	fmt.Fprintf(w, "  blocked by:  %s\n", formatIDs(result.BlockedBy))
	fmt.Fprintf(w, "  dependents:  %s\n", formatIDs(result.Dependents))
	fmt.Fprintf(w, "  score:       %.1f\n", result.Score)
	fmt.Fprintf(w, "\n%s\n", result.Description)
	if len(result.Steps) > 0 {
		fmt.Fprintf(w, "\nSteps:\n")
		for i, step := range result.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
}

// formatIDs joins IDs with commas, or "-" when there are none.
func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
