// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/featurestore"
	"github.com/bureau-foundation/backlog/lib/tui"
)

// --- order ---

type orderParams struct {
	StoreOptions
	cli.JSONOutput
}

type orderResult struct {
	depgraph.Result
	Fingerprint string `json:"fingerprint"`
}

func orderCommand(app *App) *cli.Command {
	var params orderParams

	return &cli.Command{
		Name:    "order",
		Summary: "Show the dependency-respecting work order",
		Description: `Sort the whole backlog so every feature follows its dependencies,
breaking ties by priority then ID. Features caught in or behind a
cycle are listed last, and the cycles and missing dependencies that
caused this are reported.

The fingerprint identifies the backlog state the order was computed
from. Two runs with the same fingerprint produce the same order.`,
		Usage: "backlog order [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("order", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				fingerprint, err := snapshot.Fingerprint()
				if err != nil {
					return err
				}
				engine := s.store.Engine()
				nodes := snapshot.Nodes()
				result := orderResult{Result: engine.Sort(nodes), Fingerprint: fingerprint}

				if done, err := params.EmitJSON(app.Stdout, result); done {
					return err
				}

				states := engine.Classify(nodes)
				table := app.table("#", "ID", "PRIORITY", "STATE", "NAME")
				for position, id := range result.Ordered {
					f, _ := snapshot.Feature(id)
					table.Row(
						tui.Text(strconv.Itoa(position+1)),
						tui.Text(strconv.FormatInt(id, 10)),
						tui.Text(strconv.Itoa(f.Priority)),
						tui.Colored(string(states[id]), app.Theme.StateColor(states[id])),
						tui.Text(f.Name),
					)
				}
				if err := table.Render(app.Stdout); err != nil {
					return err
				}
				writeGraphProblems(app.Stdout, result.Result)
				fmt.Fprintf(app.Stdout, "\nfingerprint: %s\n", fingerprint)
				return nil
			})
		},
	}
}

func writeGraphProblems(w io.Writer, result depgraph.Result) {
	if len(result.Cycles) > 0 {
		fmt.Fprintf(w, "\nCycles:\n")
		for _, cycle := range result.Cycles {
			parts := make([]string, len(cycle))
			for i, id := range cycle {
				parts[i] = strconv.FormatInt(id, 10)
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(parts, " -> "))
		}
	}
	if len(result.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing dependencies:\n")
		for _, id := range sortedKeys(result.Missing) {
			fmt.Fprintf(w, "  feature %d depends on absent %s\n", id, formatIDs(result.Missing[id]))
		}
	}
}

// --- ready ---

type readyParams struct {
	StoreOptions
	cli.JSONOutput
	Limit int `flag:"limit,n" desc:"show at most this many features (0 for all)"`
}

// rankedEntry is a ready feature with its score breakdown.
type rankedEntry struct {
	depgraph.ScoreDetail
	Name     string `json:"name"`
	Category string `json:"category"`
}

func readyCommand(app *App) *cli.Command {
	var params readyParams

	return &cli.Command{
		Name:    "ready",
		Summary: "List ready features, best first",
		Description: `List features that are neither passing nor in progress and whose
present dependencies all pass, ranked by scheduling score. The score
favors features that unblock the most downstream work, then features
near the root of a dependency chain, then urgent priorities. Ties
fall back to priority, then ID.`,
		Usage: "backlog ready [flags]",
		Examples: []cli.Example{
			{Description: "The three best candidates", Command: "backlog ready -n 3"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("ready", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if params.Limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", params.Limit)
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				ranked, err := rankReady(app, s)
				if err != nil {
					return err
				}
				if params.Limit > 0 && len(ranked) > params.Limit {
					ranked = ranked[:params.Limit]
				}
				if done, err := params.EmitJSON(app.Stdout, ranked); done {
					return err
				}
				if len(ranked) == 0 {
					fmt.Fprintln(app.Stdout, "No ready features.")
					return nil
				}
				table := app.table("RANK", "ID", "SCORE", "PRIORITY", "DOWNSTREAM", "DEPTH", "NAME")
				for i, entry := range ranked {
					table.Row(
						tui.Text(strconv.Itoa(i+1)),
						tui.Text(strconv.FormatInt(entry.ID, 10)),
						tui.Colored(formatScore(entry.Score), app.Theme.ScoreColor(entry.Score)),
						tui.Text(strconv.Itoa(entry.Priority)),
						tui.Text(strconv.Itoa(entry.Downstream)),
						tui.Text(strconv.Itoa(entry.Depth)),
						tui.Text(entry.Name),
					)
				}
				return table.Render(app.Stdout)
			})
		},
	}
}

func rankReady(app *App, s *session) ([]rankedEntry, error) {
	snapshot, err := s.store.Snapshot(app.context())
	if err != nil {
		return nil, err
	}
	ranked := []rankedEntry{}
	for _, detail := range s.store.Engine().Rank(snapshot.Nodes()) {
		f, _ := snapshot.Feature(detail.ID)
		ranked = append(ranked, rankedEntry{ScoreDetail: detail, Name: f.Name, Category: f.Category})
	}
	return ranked, nil
}

// --- next ---

type nextParams struct {
	StoreOptions
	cli.JSONOutput
}

func nextCommand(app *App) *cli.Command {
	var params nextParams

	return &cli.Command{
		Name:    "next",
		Summary: "Print the best ready feature",
		Description: `Print the top entry of "backlog ready". Exits with status 1 and no
output on stdout when nothing is ready, so scripts can loop until the
backlog drains. This does not claim the feature; run "backlog claim".`,
		Usage: "backlog next [flags]",
		Examples: []cli.Example{
			{Description: "Claim the best candidate", Command: "backlog claim $(backlog next --json | jq .id)"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("next", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				ranked, err := rankReady(app, s)
				if err != nil {
					return err
				}
				if len(ranked) == 0 {
					fmt.Fprintln(app.Stderr, "No ready features.")
					return &cli.ExitError{Code: 1}
				}
				best := ranked[0]
				if done, err := params.EmitJSON(app.Stdout, best); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "%d\t%s (score %s, priority %d)\n",
					best.ID, best.Name, formatScore(best.Score), best.Priority)
				return nil
			})
		},
	}
}

// --- blocked ---

type blockedParams struct {
	StoreOptions
	cli.JSONOutput
}

type blockedEntry struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Priority  int     `json:"priority"`
	BlockedBy []int64 `json:"blocked_by"`
}

func blockedCommand(app *App) *cli.Command {
	var params blockedParams

	return &cli.Command{
		Name:    "blocked",
		Summary: "List blocked features and what blocks them",
		Description: `List every feature that is not passing and has at least one present
dependency that is not passing, with those dependencies. Dependencies
on features absent from the backlog do not block; "backlog order"
reports them.`,
		Usage: "backlog blocked [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("blocked", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				blocked := s.store.Engine().Blocked(snapshot.Nodes())

				entries := []blockedEntry{}
				for _, f := range byPriority(snapshot.Features()) {
					if blockers, isBlocked := blocked[f.ID]; isBlocked {
						entries = append(entries, blockedEntry{ID: f.ID, Name: f.Name, Priority: f.Priority, BlockedBy: blockers})
					}
				}

				if done, err := params.EmitJSON(app.Stdout, entries); done {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(app.Stdout, "No blocked features.")
					return nil
				}
				table := app.table("ID", "PRIORITY", "NAME", "BLOCKED BY")
				for _, entry := range entries {
					table.Row(
						tui.Text(strconv.FormatInt(entry.ID, 10)),
						tui.Text(strconv.Itoa(entry.Priority)),
						tui.Text(entry.Name),
						tui.Colored(formatIDs(entry.BlockedBy), app.Theme.StateColor(depgraph.StateBlocked)),
					)
				}
				return table.Render(app.Stdout)
			})
		},
	}
}

// --- scores ---

type scoresParams struct {
	StoreOptions
	cli.JSONOutput
}

func scoresCommand(app *App) *cli.Command {
	var params scoresParams

	return &cli.Command{
		Name:    "scores",
		Summary: "Show the scheduling score of every feature",
		Description: `Show each feature's scheduling score with the dimensions it is
built from: downstream (how many features transitively depend on it,
counted per path), depth (longest dependency chain beneath it), and
priority. Scores range from 0 to 1110.`,
		Usage: "backlog scores [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("scores", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				snapshot, err := s.store.Snapshot(app.context())
				if err != nil {
					return err
				}
				details := s.store.Engine().ScoreDetails(snapshot.Nodes())
				if done, err := params.EmitJSON(app.Stdout, details); done {
					return err
				}
				if len(details) == 0 {
					fmt.Fprintln(app.Stdout, "No features.")
					return nil
				}
				table := app.table("ID", "SCORE", "PRIORITY", "DOWNSTREAM", "DEPTH", "NAME")
				for _, detail := range details {
					f, _ := snapshot.Feature(detail.ID)
					table.Row(
						tui.Text(strconv.FormatInt(detail.ID, 10)),
						tui.Colored(formatScore(detail.Score), app.Theme.ScoreColor(detail.Score)),
						tui.Text(strconv.Itoa(detail.Priority)),
						tui.Text(strconv.Itoa(detail.Downstream)),
						tui.Text(strconv.Itoa(detail.Depth)),
						tui.Text(f.Name),
					)
				}
				return table.Render(app.Stdout)
			})
		},
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

// --- stats ---

type statsParams struct {
	StoreOptions
	cli.JSONOutput
}

func statsCommand(app *App) *cli.Command {
	var params statsParams

	return &cli.Command{
		Name:    "stats",
		Summary: "Show backlog progress",
		Usage:   "backlog stats [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("stats", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				stats, err := s.store.Stats(app.context())
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(app.Stdout, stats); done {
					return err
				}
				writeStats(app.Stdout, stats)
				return nil
			})
		},
	}
}

func writeStats(w io.Writer, stats featurestore.Stats) {
	fmt.Fprintf(w, "%d features: %d passing (%.1f%%), %d in progress\n",
		stats.Total, stats.Passing, stats.Percentage, stats.InProgress)
}
