// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Backlog is the command-line interface to a shared feature backlog.
// It adds and imports features (add, import), answers scheduling
// questions (order, ready, next, blocked, scores, stats), records
// progress (claim, release, done, skip), edits dependencies (dep),
// and inspects the priority lock (lock). Every query accepts --json.
package main
