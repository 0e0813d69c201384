// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) so that tests driving a fake
// clock still fail instead of hanging when a goroutine never reports
// back. It is the only place in the test suite where a real
// wall-clock timeout is used.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, such as feature names created from several
// goroutines.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
