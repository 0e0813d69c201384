// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// backlog store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the
// same pragmas to every connection:
//
//   - journal_mode=WAL: readers never block the single writer, so one
//     worker listing the backlog does not stall another claiming a
//     feature.
//   - synchronous=NORMAL: commits survive process crashes.
//   - busy_timeout: wait for another process's write lock instead of
//     failing immediately (see [Config.BusyTimeout]).
//   - foreign_keys=ON: dependency rows must reference real features.
//   - cache_size=-2048: 2 MB page cache per connection.
//   - temp_store=MEMORY.
//
// There is no query builder. Callers write SQL, run it with
// sqlitex.Execute, and bound writes with sqlitex.ImmediateTransaction
// so the write lock is taken up front rather than upgraded mid
// transaction.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      ".backlog/backlog.db",
//	    Logger:    logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
