// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package featurestore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/backlog/lib/depgraph"
	"github.com/bureau-foundation/backlog/lib/schema/feature"
)

// Create inserts a batch of features. Priorities continue from the
// current maximum in batch order, and DependsOnIndices are resolved
// to the IDs assigned to earlier entries. The whole batch is one
// transaction under the priority lock: if any entry is rejected,
// nothing is written.
func (s *Store) Create(ctx context.Context, batch []feature.NewFeature) ([]feature.Feature, error) {
	for i := range batch {
		if err := batch[i].Validate(i); err != nil {
			return nil, fmt.Errorf("featurestore: create: %w", err)
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	var created []feature.Feature
	err := s.lock.Do(ctx, func() error {
		created = nil
		return s.write(ctx, "create", func(conn *sqlite.Conn) error {
			snapshot, err := loadSnapshot(conn)
			if err != nil {
				return err
			}
			known := snapshot.Known()
			next, err := maxPriority(conn)
			if err != nil {
				return err
			}

			for i := range batch {
				next++
				entry := &batch[i]
				id, err := insertFeature(conn, next, entry)
				if err != nil {
					return err
				}

				dependencies := slices.Clone(entry.DependsOn)
				for _, index := range entry.DependsOnIndices {
					dependencies = append(dependencies, created[index].ID)
				}
				if err := s.engine.ValidateDependencies(id, dependencies, known); err != nil {
					return err
				}
				if err := insertDependencies(conn, id, dependencies); err != nil {
					return err
				}
				known[id] = struct{}{}

				slices.Sort(dependencies)
				steps := slices.Clone(entry.Steps)
				if steps == nil {
					steps = []string{}
				}
				if dependencies == nil {
					dependencies = []int64{}
				}
				created = append(created, feature.Feature{
					ID:           id,
					Priority:     next,
					Category:     entry.Category,
					Name:         entry.Name,
					Description:  entry.Description,
					Steps:        steps,
					Dependencies: dependencies,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapOperation("create", err)
	}

	s.logger.Info("features created", "count", len(created),
		"first_id", created[0].ID, "last_priority", created[len(created)-1].Priority)
	return created, nil
}

func insertFeature(conn *sqlite.Conn, priority int, entry *feature.NewFeature) (int64, error) {
	err := sqlitex.Execute(conn, `
		INSERT INTO features (priority, category, name, description)
		VALUES (?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{priority, entry.Category, entry.Name, entry.Description},
	})
	if err != nil {
		return 0, fmt.Errorf("inserting feature %q: %w", entry.Name, err)
	}
	id := conn.LastInsertRowID()
	for position, step := range entry.Steps {
		err := sqlitex.Execute(conn, "INSERT INTO feature_steps (feature_id, position, step) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
			Args: []any{id, position, step},
		})
		if err != nil {
			return 0, fmt.Errorf("inserting step %d of feature %d: %w", position, id, err)
		}
	}
	return id, nil
}

func insertDependencies(conn *sqlite.Conn, id int64, dependencies []int64) error {
	for _, dependencyID := range dependencies {
		err := sqlitex.Execute(conn, "INSERT INTO feature_dependencies (feature_id, depends_on_id) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{id, dependencyID},
		})
		if err != nil {
			return fmt.Errorf("inserting dependency %d -> %d: %w", id, dependencyID, err)
		}
	}
	return nil
}

// Skip moves a feature to the end of the backlog: its priority
// becomes the current maximum plus one and any claim is cleared.
// Passing features cannot be skipped. Returns the new priority.
func (s *Store) Skip(ctx context.Context, id int64) (int, error) {
	var priority int
	err := s.lock.Do(ctx, func() error {
		return s.write(ctx, "skip", func(conn *sqlite.Conn) error {
			state, err := loadState(conn, id)
			if err != nil {
				return err
			}
			if state.passes {
				return fmt.Errorf("feature %d: %w", id, ErrAlreadyPassing)
			}
			highest, err := maxPriority(conn)
			if err != nil {
				return err
			}
			priority = highest + 1
			return sqlitex.Execute(conn, "UPDATE features SET priority = ?, in_progress = 0 WHERE id = ?", &sqlitex.ExecOptions{
				Args: []any{priority, id},
			})
		})
	})
	if err != nil {
		return 0, wrapOperation("skip", err)
	}
	s.logger.Info("feature skipped", "id", id, "priority", priority)
	return priority, nil
}

// Claim marks a ready feature as in progress. Fails with
// ErrAlreadyPassing, ErrAlreadyClaimed, or ErrBlocked.
func (s *Store) Claim(ctx context.Context, id int64) error {
	err := s.write(ctx, "claim", func(conn *sqlite.Conn) error {
		state, err := loadState(conn, id)
		if err != nil {
			return err
		}
		switch {
		case state.passes:
			return fmt.Errorf("feature %d: %w", id, ErrAlreadyPassing)
		case state.inProgress:
			return fmt.Errorf("feature %d: %w", id, ErrAlreadyClaimed)
		}

		var pending []int64
		err = sqlitex.Execute(conn, `
			SELECT d.depends_on_id FROM feature_dependencies d
			JOIN features f ON f.id = d.depends_on_id
			WHERE d.feature_id = ? AND f.passes = 0
			ORDER BY d.depends_on_id`, &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pending = append(pending, stmt.ColumnInt64(0))
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("reading dependencies of %d: %w", id, err)
		}
		if len(pending) > 0 {
			return fmt.Errorf("feature %d waits on %v: %w", id, pending, ErrBlocked)
		}
		return setFlags(conn, id, featureState{inProgress: true})
	})
	if err != nil {
		return wrapOperation("claim", err)
	}
	s.logger.Info("feature claimed", "id", id)
	return nil
}

// Release clears a feature's in-progress flag. Releasing an unclaimed
// feature is a no-op.
func (s *Store) Release(ctx context.Context, id int64) error {
	err := s.write(ctx, "release", func(conn *sqlite.Conn) error {
		state, err := loadState(conn, id)
		if err != nil {
			return err
		}
		state.inProgress = false
		return setFlags(conn, id, state)
	})
	if err != nil {
		return wrapOperation("release", err)
	}
	s.logger.Info("feature released", "id", id)
	return nil
}

// MarkPassing records that a feature has been verified. The claim is
// cleared.
func (s *Store) MarkPassing(ctx context.Context, id int64) error {
	err := s.write(ctx, "mark passing", func(conn *sqlite.Conn) error {
		if _, err := loadState(conn, id); err != nil {
			return err
		}
		return setFlags(conn, id, featureState{passes: true})
	})
	if err != nil {
		return wrapOperation("mark passing", err)
	}
	s.logger.Info("feature passes", "id", id)
	return nil
}

func setFlags(conn *sqlite.Conn, id int64, state featureState) error {
	err := sqlitex.Execute(conn, "UPDATE features SET passes = ?, in_progress = ? WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{boolInt(state.passes), boolInt(state.inProgress), id},
	})
	if err != nil {
		return fmt.Errorf("updating feature %d: %w", id, err)
	}
	return nil
}

// AddDependency makes id depend on dependsOn. The engine checks the
// edge against the graph as it stands inside the write transaction,
// so a concurrent writer cannot slip a conflicting edge in between
// the check and the insert.
func (s *Store) AddDependency(ctx context.Context, id, dependsOn int64) error {
	err := s.write(ctx, "add dependency", func(conn *sqlite.Conn) error {
		if _, err := loadState(conn, id); err != nil {
			return err
		}
		snapshot, err := loadSnapshot(conn)
		if err != nil {
			return err
		}
		if err := s.engine.CheckEdge(snapshot.Nodes(), id, dependsOn); err != nil {
			return err
		}
		return insertDependencies(conn, id, []int64{dependsOn})
	})
	if err != nil {
		return wrapOperation("add dependency", err)
	}
	s.logger.Info("dependency added", "id", id, "depends_on", dependsOn)
	return nil
}

// RemoveDependency deletes the edge "id depends on dependsOn".
// Returns ErrNotFound when there is no such edge.
func (s *Store) RemoveDependency(ctx context.Context, id, dependsOn int64) error {
	err := s.write(ctx, "remove dependency", func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM feature_dependencies WHERE feature_id = ? AND depends_on_id = ?", &sqlitex.ExecOptions{
			Args: []any{id, dependsOn},
		})
		if err != nil {
			return fmt.Errorf("deleting dependency: %w", err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("dependency %d -> %d: %w", id, dependsOn, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return wrapOperation("remove dependency", err)
	}
	s.logger.Info("dependency removed", "id", id, "depends_on", dependsOn)
	return nil
}

// SetDependencies replaces id's dependency list. The list is checked
// as a whole (limit, self, duplicates, existence), then edge by edge
// for cycles against the graph with id's old edges removed.
func (s *Store) SetDependencies(ctx context.Context, id int64, dependencies []int64) error {
	err := s.write(ctx, "set dependencies", func(conn *sqlite.Conn) error {
		if _, err := loadState(conn, id); err != nil {
			return err
		}
		snapshot, err := loadSnapshot(conn)
		if err != nil {
			return err
		}
		if err := s.engine.ValidateDependencies(id, dependencies, snapshot.Known()); err != nil {
			return err
		}

		nodes := snapshot.Nodes()
		target := slices.IndexFunc(nodes, func(node depgraph.Node) bool { return node.ID == id })
		nodes[target].Dependencies = nil
		for _, dependencyID := range dependencies {
			if err := s.engine.CheckEdge(nodes, id, dependencyID); err != nil {
				return err
			}
			nodes[target].Dependencies = append(nodes[target].Dependencies, dependencyID)
		}

		err = sqlitex.Execute(conn, "DELETE FROM feature_dependencies WHERE feature_id = ?", &sqlitex.ExecOptions{
			Args: []any{id},
		})
		if err != nil {
			return fmt.Errorf("clearing dependencies of %d: %w", id, err)
		}
		return insertDependencies(conn, id, dependencies)
	})
	if err != nil {
		return wrapOperation("set dependencies", err)
	}
	s.logger.Info("dependencies replaced", "id", id, "count", len(dependencies))
	return nil
}

// wrapOperation prefixes err with the operation name. Rejections from
// the engine are returned unwrapped so callers can show their reason
// directly.
func wrapOperation(operation string, err error) error {
	var rejection *depgraph.RejectionError
	if errors.As(err, &rejection) {
		return rejection
	}
	return fmt.Errorf("featurestore: %s: %w", operation, err)
}
