// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package featurestore persists the backlog in SQLite and applies
// every mutation through the depgraph engine's checks.
//
// Reads go through [Store.Snapshot], which loads every feature in one
// read transaction. The resulting [Snapshot] is immutable and feeds
// the engine directly via [Snapshot.Nodes].
//
// Writes run in IMMEDIATE transactions, so each mutation sees a
// consistent view and holds SQLite's write lock from the start.
// Operations that read the maximum priority and assign the next one
// ([Store.Create] and [Store.Skip]) additionally run under the
// cross-process [PriorityLock]. Dependency changes re-read the graph
// inside their transaction and are rejected by the engine before the
// edge is written; rejections are returned as *depgraph.RejectionError.
package featurestore
