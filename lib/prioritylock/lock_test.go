// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prioritylock

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/backlog/lib/clock"
	"github.com/bureau-foundation/backlog/lib/codec"
	"github.com/bureau-foundation/backlog/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLock(t *testing.T, config Config) *Lock {
	t.Helper()
	lock, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return lock
}

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "priority.lock")
}

// --- Configuration ---

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New with empty Path succeeded, want error")
	}
}

func TestNewRejectsNegativeDurations(t *testing.T) {
	if _, err := New(Config{Path: "x", Timeout: -time.Second}); err == nil {
		t.Fatal("New with negative Timeout succeeded, want error")
	}
}

func TestNewDefaults(t *testing.T) {
	lock := newLock(t, Config{Path: "x"})
	if lock.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", lock.timeout, DefaultTimeout)
	}
	if lock.pollInterval != DefaultPollInterval {
		t.Errorf("pollInterval = %v, want %v", lock.pollInterval, DefaultPollInterval)
	}
	if lock.staleAfter != DefaultTimeout {
		t.Errorf("staleAfter = %v, want timeout %v", lock.staleAfter, DefaultTimeout)
	}
}

// --- Acquire and release ---

func TestAcquireWritesMarker(t *testing.T) {
	path := lockPath(t)
	fake := clock.Fake(epoch)
	lock := newLock(t, Config{Path: path, Clock: fake})

	held, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	marker, err := ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker.Holder == "" || marker.Holder != held.Marker().Holder {
		t.Errorf("marker holder = %q, want %q", marker.Holder, held.Marker().Holder)
	}
	if marker.PID != os.Getpid() {
		t.Errorf("marker PID = %d, want %d", marker.PID, os.Getpid())
	}
	if !marker.AcquiredAt.Equal(epoch) {
		t.Errorf("marker AcquiredAt = %v, want %v", marker.AcquiredAt, epoch)
	}

	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("marker still present after Release: %v", err)
	}
	if err := held.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestDoReleasesOnError(t *testing.T) {
	path := lockPath(t)
	lock := newLock(t, Config{Path: path})
	sentinel := errors.New("boom")

	err := lock.Do(context.Background(), func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("Do error = %v, want %v", err, sentinel)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("marker still present after failed Do: %v", err)
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	path := lockPath(t)
	lock := newLock(t, Config{Path: path})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Do swallowed the panic")
			}
		}()
		lock.Do(context.Background(), func() error { panic("boom") })
	}()

	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("marker still present after panic: %v", err)
	}
}

// --- Mutual exclusion ---

func TestMutualExclusionAcrossLocks(t *testing.T) {
	// Each goroutine uses its own Lock value on the shared path, the
	// same way separate processes would. The guarded section is a
	// read-modify-write of a counter file; any overlap loses updates.
	directory := t.TempDir()
	path := filepath.Join(directory, "priority.lock")
	counterPath := filepath.Join(directory, "counter")
	if err := os.WriteFile(counterPath, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	const workers, iterations = 8, 25
	var (
		waitGroup sync.WaitGroup
		mu        sync.Mutex
		assigned  = make(map[int]bool)
		failures  []error
	)
	for range workers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			lock, err := New(Config{Path: path, PollInterval: time.Millisecond})
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return
			}
			for range iterations {
				err := lock.Do(context.Background(), func() error {
					data, err := os.ReadFile(counterPath)
					if err != nil {
						return err
					}
					value, err := strconv.Atoi(string(data))
					if err != nil {
						return err
					}
					value++
					if err := os.WriteFile(counterPath, []byte(strconv.Itoa(value)), 0o644); err != nil {
						return err
					}
					mu.Lock()
					if assigned[value] {
						failures = append(failures, errors.New("value "+strconv.Itoa(value)+" assigned twice"))
					}
					assigned[value] = true
					mu.Unlock()
					return nil
				})
				if err != nil {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
					return
				}
			}
		}()
	}
	waitGroup.Wait()

	for _, err := range failures {
		t.Error(err)
	}
	data, err := os.ReadFile(counterPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(workers*iterations) {
		t.Errorf("counter = %s, want %d", data, workers*iterations)
	}
}

func TestWaiterAcquiresAfterRelease(t *testing.T) {
	path := lockPath(t)
	fake := clock.Fake(epoch)
	holder := newLock(t, Config{Path: path, Clock: fake})
	waiter := newLock(t, Config{Path: path, Clock: fake, PollInterval: 50 * time.Millisecond})

	held, err := holder.Acquire(context.Background())
	if err != nil {
		t.Fatalf("holder Acquire: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		acquired, err := waiter.Acquire(context.Background())
		if err == nil {
			err = acquired.Release()
		}
		result <- err
	}()

	fake.WaitForTimers(1)
	if err := held.Release(); err != nil {
		t.Fatalf("holder Release: %v", err)
	}
	fake.Advance(50 * time.Millisecond)

	if err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for waiter"); err != nil {
		t.Fatalf("waiter Acquire: %v", err)
	}
}

// --- Timeout and cancellation ---

func TestTimeoutWithLiveHolder(t *testing.T) {
	path := lockPath(t)
	fake := clock.Fake(epoch)
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	holder := newLock(t, Config{Path: path, Clock: fake})
	waiter := newLock(t, Config{
		Path:         path,
		Clock:        fake,
		Timeout:      time.Second,
		PollInterval: time.Second,
		StaleAfter:   time.Hour,
		Metrics:      metrics,
	})

	if _, err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("holder Acquire: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := waiter.Acquire(context.Background())
		result <- err
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for timeout")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire error = %v, want ErrTimeout", err)
	}
	if got := promtestutil.ToFloat64(metrics.Timeouts); got != 1 {
		t.Errorf("timeouts = %v, want 1", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("live holder's marker was removed: %v", err)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	path := lockPath(t)
	fake := clock.Fake(epoch)
	holder := newLock(t, Config{Path: path, Clock: fake})
	waiter := newLock(t, Config{Path: path, Clock: fake})

	if _, err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("holder Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := waiter.Acquire(ctx)
		result <- err
	}()

	fake.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire error = %v, want context.Canceled", err)
	}
}

// --- Stale reclaim ---

func TestReclaimsStaleMarker(t *testing.T) {
	path := lockPath(t)
	fake := clock.Fake(epoch)
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	// The holder never releases, as if it crashed mid-operation.
	holder := newLock(t, Config{Path: path, Clock: fake})
	if _, err := holder.Acquire(context.Background()); err != nil {
		t.Fatalf("holder Acquire: %v", err)
	}

	waiter := newLock(t, Config{
		Path:         path,
		Clock:        fake,
		Timeout:      time.Second,
		PollInterval: 2 * time.Second,
		Metrics:      metrics,
	})
	result := make(chan *Held, 1)
	go func() {
		held, err := waiter.Acquire(context.Background())
		if err != nil {
			t.Errorf("waiter Acquire: %v", err)
		}
		result <- held
	}()

	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)

	held := testutil.RequireReceive(t, result, 5*time.Second, "waiting for reclaim")
	if held == nil {
		t.FailNow()
	}
	marker, err := ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker.Holder != held.Marker().Holder {
		t.Errorf("marker holder = %q, want the waiter's %q", marker.Holder, held.Marker().Holder)
	}
	if got := promtestutil.ToFloat64(metrics.Reclaims.WithLabelValues(reclaimReasonAge)); got != 1 {
		t.Errorf("age reclaims = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.Acquisitions); got != 1 {
		t.Errorf("acquisitions = %v, want 1", got)
	}

	leftovers, err := filepath.Glob(path + ".stale-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("reclaim left files behind: %v", leftovers)
	}
}

func TestReclaimsMarkerOfExitedProcess(t *testing.T) {
	command := exec.Command("true")
	if err := command.Run(); err != nil {
		t.Skipf("cannot run a child process: %v", err)
	}
	deadPID := command.Process.Pid

	path := lockPath(t)
	hostname, err := os.Hostname()
	if err != nil {
		t.Skipf("no hostname: %v", err)
	}
	data, err := codec.Marshal(Marker{
		Holder:     "crashed",
		PID:        deadPID,
		Hostname:   hostname,
		AcquiredAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	metrics := NewMetrics(prometheus.NewRegistry())
	lock := newLock(t, Config{
		Path:         path,
		Timeout:      20 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		StaleAfter:   time.Hour,
		Metrics:      metrics,
	})
	held, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	if got := promtestutil.ToFloat64(metrics.Reclaims.WithLabelValues(reclaimReasonHolderExited)); got != 1 {
		t.Errorf("holder_exited reclaims = %v, want 1", got)
	}
}

func TestReclaimsUndecodableMarkerByModTime(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("not cbor"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	lock := newLock(t, Config{
		Path:         path,
		Timeout:      10 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	})
	held, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestRestoreMarkerNeverOverwrites(t *testing.T) {
	path := lockPath(t)
	aside := path + ".stale-test"
	displaced := Marker{Holder: "displaced", PID: 1, Hostname: "h", AcquiredAt: epoch}
	current := Marker{Holder: "current", PID: 2, Hostname: "h", AcquiredAt: epoch}
	if err := writeMarker(aside, displaced); err != nil {
		t.Fatalf("writeMarker(aside): %v", err)
	}
	if err := writeMarker(path, current); err != nil {
		t.Fatalf("writeMarker(path): %v", err)
	}

	err := restoreMarker(aside, path)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("restoreMarker error = %v, want fs.ErrExist", err)
	}
	marker, err := ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker.Holder != "current" {
		t.Errorf("marker holder = %q, want the existing %q", marker.Holder, "current")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := restoreMarker(aside, path); err != nil {
		t.Fatalf("restoreMarker onto a free path: %v", err)
	}
	marker, err = ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker.Holder != "displaced" {
		t.Errorf("marker holder = %q, want %q", marker.Holder, "displaced")
	}
}

func TestSameMarkerIdentity(t *testing.T) {
	first := observedMarker{marker: Marker{Holder: "a"}, decoded: true, modified: epoch}
	second := observedMarker{marker: Marker{Holder: "b"}, decoded: true, modified: epoch}
	if first.same(second) {
		t.Error("markers with different holders compared equal")
	}
	raw := observedMarker{modified: epoch}
	if !raw.same(observedMarker{modified: epoch}) {
		t.Error("undecodable markers with equal mtimes compared unequal")
	}
	if raw.same(first) {
		t.Error("decoded and undecodable markers compared equal")
	}
}
