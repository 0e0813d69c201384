// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for the
// blocking parts of the backlog, chiefly the polling loop of the
// priority-counter lock.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, or time.Sleep directly. Real() provides the standard
// library behavior. Fake() provides a clock that advances only when
// Advance is called.
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep or After on a FakeClock it registers a
// pending waiter. Use WaitForTimers to block until that registration
// has happened before calling Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { result <- lock.Acquire(ctx) }()
//	c.WaitForTimers(1)             // the waiter is polling
//	c.Advance(pollInterval)        // fire its next poll
package clock
