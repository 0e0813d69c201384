// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test.
type recorder struct {
	failed  bool
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
}

func TestRequireReceiveValue(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	if got := RequireReceive(t, ch, time.Second, "value"); got != 42 {
		t.Errorf("RequireReceive = %d, want 42", got)
	}
}

func TestRequireReceiveClosed(t *testing.T) {
	ch := make(chan int)
	close(ch)
	r := &recorder{}
	RequireReceive(r, ch, time.Second, "closed %s", "channel")
	if !r.failed || r.message != "channel closed without sending a value: closed channel" {
		t.Errorf("recorder = %+v", r)
	}
}

func TestRequireReceiveTimeout(t *testing.T) {
	r := &recorder{}
	RequireReceive(r, make(chan int), time.Millisecond)
	if !r.failed {
		t.Error("RequireReceive on a silent channel did not fail")
	}
}

func TestUniqueID(t *testing.T) {
	first, second := UniqueID("feature"), UniqueID("feature")
	if first == second {
		t.Errorf("UniqueID returned %q twice", first)
	}
}
