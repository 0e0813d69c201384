// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package featurestore

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/backlog/lib/codec"
	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/schema/feature"
)

// Snapshot is an immutable view of the whole backlog, ordered by ID.
type Snapshot struct {
	features []feature.Feature
	index    map[int64]int
}

// Snapshot loads every feature in one read transaction.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Transaction(conn)(&err)
		snapshot, err = loadSnapshot(conn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("featurestore: snapshot: %w", err)
	}
	return snapshot, nil
}

func loadSnapshot(conn *sqlite.Conn) (*Snapshot, error) {
	snapshot := &Snapshot{index: make(map[int64]int)}

	err := sqlitex.Execute(conn, `
		SELECT id, priority, category, name, description, passes, in_progress
		FROM features ORDER BY id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			f := feature.Feature{
				ID:           stmt.ColumnInt64(0),
				Priority:     stmt.ColumnInt(1),
				Category:     stmt.ColumnText(2),
				Name:         stmt.ColumnText(3),
				Description:  stmt.ColumnText(4),
				Passes:       stmt.ColumnInt64(5) != 0,
				InProgress:   stmt.ColumnInt64(6) != 0,
				Steps:        []string{},
				Dependencies: []int64{},
			}
			snapshot.index[f.ID] = len(snapshot.features)
			snapshot.features = append(snapshot.features, f)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading features: %w", err)
	}

	err = sqlitex.Execute(conn, "SELECT feature_id, step FROM feature_steps ORDER BY feature_id, position", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if i, ok := snapshot.index[stmt.ColumnInt64(0)]; ok {
				snapshot.features[i].Steps = append(snapshot.features[i].Steps, stmt.ColumnText(1))
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading steps: %w", err)
	}

	err = sqlitex.Execute(conn, "SELECT feature_id, depends_on_id FROM feature_dependencies ORDER BY feature_id, depends_on_id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if i, ok := snapshot.index[stmt.ColumnInt64(0)]; ok {
				snapshot.features[i].Dependencies = append(snapshot.features[i].Dependencies, stmt.ColumnInt64(1))
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading dependencies: %w", err)
	}
	return snapshot, nil
}

// Len returns the number of features.
func (snapshot *Snapshot) Len() int { return len(snapshot.features) }

// Features returns every feature ordered by ID. The slice is shared;
// callers must not modify it.
func (snapshot *Snapshot) Features() []feature.Feature { return snapshot.features }

// Feature returns the feature with the given ID.
func (snapshot *Snapshot) Feature(id int64) (feature.Feature, bool) {
	i, ok := snapshot.index[id]
	if !ok {
		return feature.Feature{}, false
	}
	return snapshot.features[i], true
}

// Nodes projects the snapshot onto the engine's input.
func (snapshot *Snapshot) Nodes() []depgraph.Node {
	nodes := make([]depgraph.Node, len(snapshot.features))
	for i := range snapshot.features {
		nodes[i] = snapshot.features[i].Node()
	}
	return nodes
}

// Known returns the set of feature IDs.
func (snapshot *Snapshot) Known() map[int64]struct{} {
	known := make(map[int64]struct{}, len(snapshot.features))
	for _, f := range snapshot.features {
		known[f.ID] = struct{}{}
	}
	return known
}

// Fingerprint identifies the snapshot's content: the hex BLAKE3 hash
// of its deterministic CBOR encoding. Two snapshots with the same
// features, field for field, have the same fingerprint, so a caller
// can tell whether a previously computed ordering is still current.
func (snapshot *Snapshot) Fingerprint() (string, error) {
	features := snapshot.features
	if features == nil {
		features = []feature.Feature{}
	}
	data, err := codec.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("featurestore: encoding snapshot: %w", err)
	}
	digest := blake3.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}
