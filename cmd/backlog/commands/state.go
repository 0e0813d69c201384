// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/featurestore"
)

type stateParams struct {
	StoreOptions
	cli.JSONOutput
}

// stateChange describes one of the single-feature state commands.
type stateChange struct {
	name        string
	summary     string
	description string
	// verb completes "Feature N ..." in the confirmation line.
	verb  string
	apply func(ctx context.Context, s *session, id int64) error
}

func stateCommand(app *App, change stateChange) *cli.Command {
	var params stateParams
	usage := fmt.Sprintf("backlog %s <id> [flags]", change.name)

	return &cli.Command{
		Name:        change.name,
		Summary:     change.summary,
		Description: change.description,
		Usage:       usage,
		Flags:       func() *pflag.FlagSet { return cli.FlagsFromParams(change.name, &params) },
		Run: func(args []string) error {
			if err := requireArgs(args, 1, usage); err != nil {
				return err
			}
			id, err := parseID("feature ID", args[0])
			if err != nil {
				return err
			}
			return app.withSession(&params.StoreOptions, func(s *session) error {
				ctx := app.context()
				if err := change.apply(ctx, s, id); err != nil {
					return err
				}
				snapshot, err := s.store.Snapshot(ctx)
				if err != nil {
					return err
				}
				f, ok := snapshot.Feature(id)
				if !ok {
					return fmt.Errorf("feature %d: %w", id, featurestore.ErrNotFound)
				}
				if done, err := params.EmitJSON(app.Stdout, f); done {
					return err
				}
				fmt.Fprintf(app.Stdout, "Feature %d %s: %s\n", id, change.verb, f.Name)
				return nil
			})
		},
	}
}

func claimCommand(app *App) *cli.Command {
	return stateCommand(app, stateChange{
		name:    "claim",
		summary: "Mark a ready feature as in progress",
		description: `Mark a feature as in progress so other agents skip it. Fails when
the feature already passes, is already claimed, or still has a
present dependency that does not pass.`,
		verb: "claimed",
		apply: func(ctx context.Context, s *session, id int64) error {
			return s.store.Claim(ctx, id)
		},
	})
}

func releaseCommand(app *App) *cli.Command {
	return stateCommand(app, stateChange{
		name:        "release",
		summary:     "Clear a feature's in-progress mark",
		description: `Return a claimed feature to the pool without marking it passing.`,
		verb:        "released",
		apply: func(ctx context.Context, s *session, id int64) error {
			return s.store.Release(ctx, id)
		},
	})
}

func doneCommand(app *App) *cli.Command {
	return stateCommand(app, stateChange{
		name:    "done",
		summary: "Mark a feature as passing",
		description: `Record that a feature's verification steps pass. Features that
depend on it may become ready.`,
		verb: "passes",
		apply: func(ctx context.Context, s *session, id int64) error {
			return s.store.MarkPassing(ctx, id)
		},
	})
}

func skipCommand(app *App) *cli.Command {
	return stateCommand(app, stateChange{
		name:    "skip",
		summary: "Move a feature to the end of the backlog",
		description: `Give a feature the next free priority, one past the current
maximum, and clear its claim. Use this to defer work that cannot be
done now. Passing features cannot be skipped.`,
		verb: "moved to the end",
		apply: func(ctx context.Context, s *session, id int64) error {
			s.lockUsed = true
			priority, err := s.store.Skip(ctx, id)
			if err != nil {
				return err
			}
			s.logger.Info("skip assigned priority", "id", id, "priority", priority)
			return nil
		},
	})
}
