// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package featurestore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Stats summarizes backlog progress.
type Stats struct {
	Total      int     `json:"total"`
	Passing    int     `json:"passing"`
	InProgress int     `json:"in_progress"`
	Percentage float64 `json:"percentage"`
}

// Stats counts features by status. Percentage is passing over total,
// 0 for an empty backlog.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT COUNT(*), COALESCE(SUM(passes), 0), COALESCE(SUM(in_progress), 0)
			FROM features`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.Total = stmt.ColumnInt(0)
				stats.Passing = stmt.ColumnInt(1)
				stats.InProgress = stmt.ColumnInt(2)
				return nil
			},
		})
	})
	if err != nil {
		return Stats{}, fmt.Errorf("featurestore: stats: %w", err)
	}
	if stats.Total > 0 {
		stats.Percentage = float64(stats.Passing) / float64(stats.Total) * 100
	}
	return stats, nil
}
