// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prioritylock provides the cross-process lock that guards
// the backlog's priority counter.
//
// New features are assigned priority max+1, and skipping a feature
// moves it to max+1. Both are read-then-write sequences against a
// store shared by independent worker processes, so two workers
// running them at once could assign the same priority. Every such
// sequence runs inside [Lock.Do], which serializes it across
// processes on the same filesystem.
//
// # Mechanism
//
// The lock is a marker file created with O_CREATE|O_EXCL. Its content
// is a CBOR-encoded [Marker] naming the holder (a random token, PID,
// and hostname) and the acquisition time. A process that finds the
// marker present polls at a fixed interval. Once it has waited for
// the configured timeout it inspects the marker: a marker older than
// StaleAfter, or one whose holder process on this host no longer
// exists, is reclaimed; otherwise acquisition fails with [ErrTimeout]
// and the caller must not touch the counter.
//
// Reclamation renames the stale marker aside before deleting it and
// checks that the renamed file is the marker that was inspected. If
// another waiter reclaimed first and a new holder has already taken
// the lock, the new holder's marker is put back.
//
// Release removes the marker unconditionally. [Lock.Do] releases on
// every exit path, including panics.
//
// # Observability
//
// Acquisitions, timeouts, reclaims, wait time, and hold time are
// exported as Prometheus metrics when a [Metrics] value is
// configured.
package prioritylock
