// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/backlog/cmd/backlog/cli"
	"github.com/bureau-foundation/backlog/lib/prioritylock"
)

type lockParams struct {
	StoreOptions
	cli.JSONOutput
}

type lockStatus struct {
	Path       string     `json:"path"`
	Held       bool       `json:"held"`
	Holder     string     `json:"holder,omitempty"`
	PID        int        `json:"pid,omitempty"`
	Hostname   string     `json:"hostname,omitempty"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
	AgeSeconds float64    `json:"age_seconds,omitempty"`
}

func lockCommand(app *App) *cli.Command {
	var params lockParams

	return &cli.Command{
		Name:    "lock",
		Summary: "Show who holds the priority lock",
		Description: `Show the priority lock marker: the holder token, process, host,
and how long ago it was taken. The lock is held only for the moment a
command assigns priorities ("add", "import", "skip"). A marker that
lingers belongs to a process that died; the next waiter reclaims it
once the holder is gone or the marker is older than lock.stale_after.`,
		Usage: "backlog lock [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("lock", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}

			status := lockStatus{Path: cfg.Paths.Lock}
			marker, err := prioritylock.ReadMarker(cfg.Paths.Lock)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return err
			default:
				acquiredAt := marker.AcquiredAt
				status.Held = true
				status.Holder = marker.Holder
				status.PID = marker.PID
				status.Hostname = marker.Hostname
				status.AcquiredAt = &acquiredAt
				status.AgeSeconds = time.Since(acquiredAt).Seconds()
			}

			if done, err := params.EmitJSON(app.Stdout, status); done {
				return err
			}
			if !status.Held {
				fmt.Fprintf(app.Stdout, "Lock %s is free\n", status.Path)
				return nil
			}
			fmt.Fprintf(app.Stdout, "Lock %s is held\n", status.Path)
			fmt.Fprintf(app.Stdout, "  holder:   %s\n", status.Holder)
			fmt.Fprintf(app.Stdout, "  process:  %d on %s\n", status.PID, status.Hostname)
			fmt.Fprintf(app.Stdout, "  acquired: %s (%s ago)\n",
				status.AcquiredAt.Format(time.RFC3339), time.Duration(status.AgeSeconds*float64(time.Second)).Round(time.Second))
			return nil
		},
	}
}
