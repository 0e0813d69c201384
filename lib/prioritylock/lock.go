// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prioritylock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/backlog/lib/clock"
)

// Default timing. The timeout matches the interval after which a
// crashed holder's marker is considered abandoned.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrTimeout is returned by [Lock.Acquire] when the lock could not be
// obtained within the configured timeout and the existing marker is
// not stale. The caller must not proceed with the guarded operation.
var ErrTimeout = errors.New("prioritylock: timed out waiting for lock")

// Config configures a [Lock].
type Config struct {
	// Path is the marker file. Its directory must exist. Required.
	Path string

	// Timeout bounds how long Acquire waits before inspecting the
	// marker for staleness. Defaults to DefaultTimeout.
	Timeout time.Duration

	// PollInterval is the delay between creation attempts while the
	// lock is held elsewhere. Defaults to DefaultPollInterval.
	PollInterval time.Duration

	// StaleAfter is the marker age beyond which it is reclaimed.
	// Defaults to Timeout.
	StaleAfter time.Duration

	// Clock drives polling and marker timestamps. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger receives acquisition and reclaim events. Defaults to a
	// discard logger.
	Logger *slog.Logger

	// Metrics records lock activity. Optional.
	Metrics *Metrics
}

// Lock is a cross-process mutual exclusion lock backed by a marker
// file. A Lock value holds no state between acquisitions; separate
// Lock values on the same path exclude each other exactly as separate
// processes do.
type Lock struct {
	path         string
	timeout      time.Duration
	pollInterval time.Duration
	staleAfter   time.Duration
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *Metrics

	pid      int
	hostname string
}

// New validates config and returns a Lock.
func New(config Config) (*Lock, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("prioritylock: Path is required")
	}
	if config.Timeout < 0 || config.PollInterval < 0 || config.StaleAfter < 0 {
		return nil, fmt.Errorf("prioritylock: durations must not be negative")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = config.Timeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Lock{
		path:         config.Path,
		timeout:      config.Timeout,
		pollInterval: config.PollInterval,
		staleAfter:   config.StaleAfter,
		clock:        config.Clock,
		logger:       config.Logger.With("lock", config.Path),
		metrics:      config.Metrics,
		pid:          os.Getpid(),
		hostname:     hostname,
	}, nil
}

// Path returns the marker file path.
func (l *Lock) Path() string { return l.path }

// Held is an acquired lock. Release it exactly once; further calls
// are no-ops.
type Held struct {
	lock       *Lock
	marker     Marker
	releaseMu  sync.Mutex
	isReleased bool
}

// Marker returns the marker this holder wrote.
func (h *Held) Marker() Marker { return h.marker }

// Acquire blocks until the lock is obtained, the timeout passes with
// a live holder (ErrTimeout), or ctx is cancelled (ctx.Err()).
func (l *Lock) Acquire(ctx context.Context) (*Held, error) {
	start := l.clock.Now()
	for {
		marker := Marker{
			Holder:     uuid.NewString(),
			PID:        l.pid,
			Hostname:   l.hostname,
			AcquiredAt: l.clock.Now(),
		}
		err := writeMarker(l.path, marker)
		if err == nil {
			waited := l.clock.Now().Sub(start)
			l.metrics.acquired(waited)
			l.logger.Debug("priority lock acquired", "holder", marker.Holder, "waited", waited)
			return &Held{lock: l, marker: marker}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("prioritylock: creating %s: %w", l.path, err)
		}

		if l.clock.Now().Sub(start) >= l.timeout {
			reclaimed, err := l.reclaimIfStale()
			if err != nil {
				return nil, err
			}
			if reclaimed {
				continue
			}
			l.metrics.timedOut()
			l.logger.Warn("priority lock acquisition timed out", "timeout", l.timeout)
			return nil, fmt.Errorf("%w: %s held for longer than %s", ErrTimeout, l.path, l.timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.clock.After(l.pollInterval):
		}
	}
}

// reclaimIfStale removes the marker when it is older than staleAfter
// or its holder process has exited. Returns true when the caller
// should retry creation immediately.
func (l *Lock) reclaimIfStale() (bool, error) {
	observed, err := observe(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("prioritylock: inspecting %s: %w", l.path, err)
	}

	age := l.clock.Now().Sub(observed.acquiredAt())
	reason := ""
	switch {
	case age > l.staleAfter:
		reason = reclaimReasonAge
	case l.holderExited(observed):
		reason = reclaimReasonHolderExited
	default:
		return false, nil
	}

	// Move the marker aside before deleting it so that a concurrent
	// reclaimer and a new holder cannot both lose their marker.
	aside := l.path + ".stale-" + uuid.NewString()
	if err := os.Rename(l.path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("prioritylock: reclaiming %s: %w", l.path, err)
	}
	defer os.Remove(aside)

	displaced, err := observe(aside)
	if err != nil {
		return false, fmt.Errorf("prioritylock: inspecting reclaimed marker: %w", err)
	}
	if !displaced.same(observed) {
		// A newer holder's marker was moved. Put it back; if a third
		// process has already taken the path, exclusion is broken.
		if err := restoreMarker(aside, l.path); err != nil {
			l.logger.Error("restoring priority lock marker after lost reclaim race",
				"error", err, "holder", displaced.marker.Holder)
			return false, err
		}
		return true, nil
	}

	l.metrics.reclaimed(reason)
	l.logger.Warn("reclaimed stale priority lock",
		"reason", reason,
		"holder", observed.marker.Holder,
		"holder_pid", observed.marker.PID,
		"holder_host", observed.marker.Hostname,
		"age", age,
	)
	return true, nil
}

// restoreMarker moves a displaced marker back to path. It never
// replaces a marker that already exists there.
func restoreMarker(aside, path string) error {
	if err := os.Link(aside, path); err != nil {
		return fmt.Errorf("prioritylock: restoring displaced marker at %s: %w", path, err)
	}
	return nil
}

// holderExited reports whether the marker's holder is a process on
// this host that no longer exists. Markers from other hosts, or that
// could not be decoded, are never judged this way.
func (l *Lock) holderExited(observed observedMarker) bool {
	if !observed.decoded || observed.marker.Hostname != l.hostname {
		return false
	}
	if observed.marker.PID == l.pid {
		return false
	}
	return !processExists(observed.marker.PID)
}

// Release removes the marker file. The removal is unconditional: if
// this holder's marker was reclaimed and another process now holds
// the lock, that holder's marker is removed too, and a warning is
// logged.
func (h *Held) Release() error {
	h.releaseMu.Lock()
	defer h.releaseMu.Unlock()
	if h.isReleased {
		return nil
	}
	h.isReleased = true

	l := h.lock
	if current, err := ReadMarker(l.path); err == nil && current.Holder != h.marker.Holder {
		l.logger.Warn("releasing priority lock marker owned by another holder",
			"holder", h.marker.Holder, "current_holder", current.Holder)
	}

	held := l.clock.Now().Sub(h.marker.AcquiredAt)
	l.metrics.released(held)
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("prioritylock: removing %s: %w", l.path, err)
	}
	l.logger.Debug("priority lock released", "holder", h.marker.Holder, "held", held)
	return nil
}

// Do runs fn while holding the lock. The lock is released on every
// exit path, including a panic in fn. If fn succeeds, a release
// failure is returned; otherwise fn's error wins.
func (l *Lock) Do(ctx context.Context, fn func() error) (err error) {
	held, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := held.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()
	return fn()
}
