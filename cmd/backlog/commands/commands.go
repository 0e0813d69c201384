// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the backlog CLI command tree.
//
// Every command opens the store itself from the global --config and
// --root flags, runs one operation, and closes it again. The CLI is
// a short-lived process; several of them (one per agent) share the
// same database and priority lock.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/config"
	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/featurestore"
	"github.com/bureau-foundation/backlog/lib/prioritylock"
	"github.com/bureau-foundation/backlog/lib/tui"
	"github.com/bureau-foundation/backlog/lib/version"
)

// App carries the process-level dependencies the commands write to.
// Tests substitute buffers.
type App struct {
	Context context.Context
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger

	// Theme styles tables on a terminal.
	Theme tui.Theme
}

func (app *App) context() context.Context {
	if app.Context == nil {
		return context.Background()
	}
	return app.Context
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return app.Logger
}

// Root builds the complete command tree.
func Root(app *App) *cli.Command {
	return &cli.Command{
		Name: "backlog",
		Description: `backlog: a prioritized feature backlog with dependencies.

Features carry a priority (lower is more urgent) and may depend on
other features. The backlog answers which work is ready, in what
order to attempt it, what is blocked and by what, and whether a new
dependency would create a cycle. Several agents may share one backlog
directory concurrently.`,
		HelpOutput: app.Stdout,
		Subcommands: []*cli.Command{
			addCommand(app),
			importCommand(app),
			listCommand(app),
			showCommand(app),
			orderCommand(app),
			readyCommand(app),
			nextCommand(app),
			blockedCommand(app),
			scoresCommand(app),
			statsCommand(app),
			claimCommand(app),
			releaseCommand(app),
			doneCommand(app),
			skipCommand(app),
			depCommand(app),
			lockCommand(app),
			versionCommand(app),
		},
	}
}

// StoreOptions are the global flags every command accepts. Embed in
// a params struct; BindFlags picks them up through AddFlags.
type StoreOptions struct {
	ConfigPath string
	Root       string
}

// AddFlags registers --config and --root.
func (o *StoreOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.ConfigPath, "config", "", "config file (default: $"+config.ConfigEnvVar+", then built-in defaults)")
	flagSet.StringVar(&o.Root, "root", config.DefaultRoot, "backlog directory when no config file is used")
}

// loadConfig resolves the configuration: --config wins, then
// BACKLOG_CONFIG, then defaults rooted at --root.
func (o *StoreOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.ConfigPath != "":
		cfg, err = config.LoadFile(o.ConfigPath)
	case os.Getenv(config.ConfigEnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.ForRoot(o.Root)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session is one open backlog: configuration, lock, store, and the
// metrics registry the lock reports into.
type session struct {
	config   *config.Config
	lock     *prioritylock.Lock
	store    *featurestore.Store
	registry *prometheus.Registry
	logger   *slog.Logger

	// lockUsed is set by commands that take the priority lock, so
	// close knows to export metrics.
	lockUsed bool
}

// open loads the configuration and opens the store.
func (app *App) open(options *StoreOptions) (*session, error) {
	logger := app.logger()

	cfg, err := options.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	durations, err := cfg.Lock.Durations()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	lock, err := prioritylock.New(prioritylock.Config{
		Path:         cfg.Paths.Lock,
		Timeout:      durations.Timeout,
		PollInterval: durations.PollInterval,
		StaleAfter:   durations.StaleAfter,
		Logger:       logger,
		Metrics:      prioritylock.NewMetrics(registry),
	})
	if err != nil {
		return nil, err
	}

	store, err := featurestore.Open(featurestore.Config{
		Path:   cfg.Paths.Database,
		Lock:   lock,
		Engine: depgraph.New(cfg.Limits.Engine()),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("backlog opened", "root", cfg.Paths.Root, "database", cfg.Paths.Database)
	return &session{
		config:   cfg,
		lock:     lock,
		store:    store,
		registry: registry,
		logger:   logger,
	}, nil
}

// close exports lock metrics when the command took the lock and a
// textfile is configured, then closes the store.
func (s *session) close() error {
	var errs []error
	if s.lockUsed && s.config.Paths.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(s.config.Paths.MetricsTextfile, s.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withSession opens a session, runs fn, and closes the session,
// keeping fn's error in preference to a close error.
func (app *App) withSession(options *StoreOptions, fn func(s *session) error) (err error) {
	s, err := app.open(options)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

// table returns a table styled for the app's stdout.
func (app *App) table(headers ...string) *tui.Table {
	return tui.NewTable(app.Theme, !cli.IsTerminal(app.Stdout), headers...)
}

// parseID parses a positional feature ID.
func parseID(what, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, value)
	}
	return id, nil
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, count int, usage string) error {
	if len(args) != count {
		return fmt.Errorf("expected %d argument(s), got %d\n\nUsage: %s", count, len(args), usage)
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

type versionParams struct {
	cli.JSONOutput
}

func versionCommand(app *App) *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("version", &params) },
		Run: func(args []string) error {
			build := version.Current()
			if done, err := params.EmitJSON(app.Stdout, build); done {
				return err
			}
			fmt.Fprintln(app.Stdout, build.String())
			return nil
		},
	}
}
