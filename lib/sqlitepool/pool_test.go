// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/backlog/lib/sqlitepool"
)

// backlogSchema is a reduced form of the feature store's tables:
// enough to exercise foreign keys and cascades across connections.
const backlogSchema = `
CREATE TABLE IF NOT EXISTS features (
	id       INTEGER PRIMARY KEY,
	priority INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS feature_dependencies (
	feature_id    INTEGER NOT NULL REFERENCES features (id) ON DELETE CASCADE,
	depends_on_id INTEGER NOT NULL REFERENCES features (id) ON DELETE CASCADE,
	PRIMARY KEY (feature_id, depends_on_id)
);
`

func applyBacklogSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, backlogSchema, nil)
}

// --- Connection setup ---

func TestConnectionPragmas(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        filepath.Join(t.TempDir(), "backlog.db"),
		BusyTimeout: 1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "1500"},
		{"foreign_keys", "1"},
	}
	err = pool.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		for _, test := range tests {
			got, err := queryText(conn, "PRAGMA "+test.pragma)
			if err != nil {
				return err
			}
			if got != test.want {
				t.Errorf("PRAGMA %s = %q, want %q", test.pragma, got, test.want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOnConnectSchemaVisibleAcrossConnections(t *testing.T) {
	pool := openBacklogPool(t, 2)
	ctx := context.Background()

	first, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take first: %v", err)
	}
	second, err := pool.Take(ctx)
	if err != nil {
		pool.Put(first)
		t.Fatalf("Take second: %v", err)
	}
	defer pool.Put(first)
	defer pool.Put(second)

	err = sqlitex.ExecuteScript(first, `
		INSERT INTO features (id, priority) VALUES (1, 1), (2, 2);
		INSERT INTO feature_dependencies (feature_id, depends_on_id) VALUES (2, 1);
	`, nil)
	if err != nil {
		t.Fatalf("insert on first connection: %v", err)
	}

	// Deleting through the other connection cascades to the edge.
	if err := sqlitex.Execute(second, "DELETE FROM features WHERE id = 1", nil); err != nil {
		t.Fatalf("delete on second connection: %v", err)
	}
	edges, err := queryText(first, "SELECT COUNT(*) FROM feature_dependencies")
	if err != nil {
		t.Fatal(err)
	}
	if edges != "0" {
		t.Errorf("dependency rows after cascade = %s, want 0", edges)
	}
}

func TestOnConnectErrorFailsTake(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: filepath.Join(t.TempDir(), "broken.db"),
		OnConnect: func(*sqlite.Conn) error {
			return errors.New("schema unavailable")
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	err = pool.WithConn(context.Background(), func(*sqlite.Conn) error {
		t.Error("callback ran on a connection whose setup failed")
		return nil
	})
	if err == nil {
		t.Fatal("WithConn succeeded, want the OnConnect failure")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	pool := openBacklogPool(t, 1)
	err := pool.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO feature_dependencies (feature_id, depends_on_id) VALUES (7, 8)", nil)
	})
	if err == nil {
		t.Fatal("edge between missing features was stored, want a foreign key error")
	}
}

// --- Pool behavior ---

func TestConcurrentSnapshotReads(t *testing.T) {
	pool := openBacklogPool(t, 4)
	err := pool.WithConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			INSERT INTO features (id, priority) VALUES (1, 5), (2, 4), (3, 3), (4, 2), (5, 1);
			INSERT INTO feature_dependencies (feature_id, depends_on_id)
				VALUES (2, 1), (3, 2), (4, 3), (5, 4);
		`, nil)
	})
	if err != nil {
		t.Fatalf("seeding backlog: %v", err)
	}

	const readers = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, readers)
	for range readers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			failures <- pool.WithConn(context.Background(), func(conn *sqlite.Conn) error {
				var features, edges int
				err := sqlitex.Execute(conn, `
					SELECT (SELECT COUNT(*) FROM features),
					       (SELECT COUNT(*) FROM feature_dependencies)`,
					&sqlitex.ExecOptions{
						ResultFunc: func(stmt *sqlite.Stmt) error {
							features = stmt.ColumnInt(0)
							edges = stmt.ColumnInt(1)
							return nil
						},
					})
				if err != nil {
					return err
				}
				if features != 5 || edges != 4 {
					return fmt.Errorf("snapshot has %d features and %d edges, want 5 and 4", features, edges)
				}
				return nil
			})
		}()
	}
	waitGroup.Wait()
	close(failures)

	for err := range failures {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestWithConnReturnsCallbackError(t *testing.T) {
	pool := openBacklogPool(t, 1)
	sentinel := errors.New("callback failed")
	err := pool.WithConn(context.Background(), func(*sqlite.Conn) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithConn error = %v, want %v", err, sentinel)
	}

	// With a single connection, a second call only succeeds if the
	// first returned its connection.
	if err := pool.WithConn(context.Background(), func(*sqlite.Conn) error { return nil }); err != nil {
		t.Fatalf("second WithConn: %v", err)
	}
}

func TestTakeHonorsCancelledContext(t *testing.T) {
	pool := openBacklogPool(t, 1)

	held, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take on an exhausted pool with a cancelled context succeeded")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("Open with no Path succeeded")
	}
}

// openBacklogPool opens a pool of the given size on a temporary
// database carrying backlogSchema. It is closed when the test ends.
func openBacklogPool(t *testing.T, size int) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(t.TempDir(), "backlog.db"),
		PoolSize:  size,
		OnConnect: applyBacklogSchema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func queryText(conn *sqlite.Conn, query string) (string, error) {
	var result string
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", query, err)
	}
	return result, nil
}
