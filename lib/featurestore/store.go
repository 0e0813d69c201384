// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package featurestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/sqlitepool"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrNotFound       = errors.New("feature not found")
	ErrAlreadyClaimed = errors.New("feature is already in progress")
	ErrAlreadyPassing = errors.New("feature already passes")
	ErrBlocked        = errors.New("feature has dependencies that do not pass")
)

// PriorityLock serializes read-max-then-assign sequences across
// processes. *prioritylock.Lock satisfies it.
type PriorityLock interface {
	Do(ctx context.Context, fn func() error) error
}

const schema = `
CREATE TABLE IF NOT EXISTS features (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	priority    INTEGER NOT NULL,
	category    TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	passes      INTEGER NOT NULL DEFAULT 0,
	in_progress INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS features_priority ON features (priority);

CREATE TABLE IF NOT EXISTS feature_steps (
	feature_id INTEGER NOT NULL REFERENCES features (id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	step       TEXT NOT NULL,
	PRIMARY KEY (feature_id, position)
);

CREATE TABLE IF NOT EXISTS feature_dependencies (
	feature_id    INTEGER NOT NULL REFERENCES features (id) ON DELETE CASCADE,
	depends_on_id INTEGER NOT NULL REFERENCES features (id) ON DELETE CASCADE,
	PRIMARY KEY (feature_id, depends_on_id),
	CHECK (feature_id != depends_on_id)
);
CREATE INDEX IF NOT EXISTS feature_dependencies_depends_on
	ON feature_dependencies (depends_on_id);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist. Required.
	Path string

	// PoolSize and BusyTimeout are passed to sqlitepool.
	PoolSize    int
	BusyTimeout time.Duration

	// Lock guards priority assignment. Required.
	Lock PriorityLock

	// Engine checks dependency changes. Defaults to
	// depgraph.Default().
	Engine *depgraph.Engine

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Store is the SQLite-backed backlog. Safe for concurrent use, and
// safe to open from several processes on the same file.
type Store struct {
	pool   *sqlitepool.Pool
	lock   PriorityLock
	engine *depgraph.Engine
	logger *slog.Logger
}

// Open opens (creating if needed) the backlog database.
func Open(cfg Config) (*Store, error) {
	if cfg.Lock == nil {
		return nil, fmt.Errorf("featurestore: Lock is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = depgraph.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		PoolSize:    cfg.PoolSize,
		BusyTimeout: cfg.BusyTimeout,
		Logger:      cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("featurestore: %w", err)
	}

	return &Store{
		pool:   pool,
		lock:   cfg.Lock,
		engine: cfg.Engine,
		logger: cfg.Logger,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Engine returns the dependency engine the store validates with.
func (s *Store) Engine() *depgraph.Engine {
	return s.engine
}

// write runs fn in an IMMEDIATE transaction. fn's error rolls the
// transaction back.
func (s *Store) write(ctx context.Context, operation string, fn func(conn *sqlite.Conn) error) error {
	return s.pool.WithConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("featurestore: %s: begin transaction: %w", operation, err)
		}
		defer endTransaction(&err)
		return fn(conn)
	})
}

// maxPriority returns the highest priority in the backlog, or 0 when
// it is empty.
func maxPriority(conn *sqlite.Conn) (int, error) {
	var highest int
	err := sqlitex.Execute(conn, "SELECT COALESCE(MAX(priority), 0) FROM features", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			highest = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("reading max priority: %w", err)
	}
	return highest, nil
}

// featureState is the mutable status of one feature row.
type featureState struct {
	passes     bool
	inProgress bool
}

// loadState reads the status flags of one feature. Returns ErrNotFound
// when id does not exist.
func loadState(conn *sqlite.Conn, id int64) (featureState, error) {
	var (
		state featureState
		found bool
	)
	err := sqlitex.Execute(conn, "SELECT passes, in_progress FROM features WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			state.passes = stmt.ColumnInt64(0) != 0
			state.inProgress = stmt.ColumnInt64(1) != 0
			return nil
		},
	})
	if err != nil {
		return featureState{}, fmt.Errorf("reading feature %d: %w", id, err)
	}
	if !found {
		return featureState{}, fmt.Errorf("feature %d: %w", id, ErrNotFound)
	}
	return state, nil
}

func boolInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
