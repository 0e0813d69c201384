// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prioritylock

import (
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/backlog/lib/codec"
)

// Marker is the content of the lock file.
type Marker struct {
	// Holder is a random token unique to one acquisition.
	Holder string `cbor:"holder"`

	// PID and Hostname identify the holding process.
	PID      int    `cbor:"pid"`
	Hostname string `cbor:"hostname"`

	// AcquiredAt is the holder's clock reading when it created the
	// marker.
	AcquiredAt time.Time `cbor:"acquired_at"`
}

// ReadMarker decodes the marker at path. Returns an error wrapping
// fs.ErrNotExist when the lock is free.
func ReadMarker(path string) (Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Marker{}, err
	}
	var marker Marker
	if err := codec.Unmarshal(data, &marker); err != nil {
		return Marker{}, fmt.Errorf("prioritylock: decoding marker %s: %w", path, err)
	}
	return marker, nil
}

// writeMarker creates path exclusively and writes marker into it.
// Returns an error wrapping fs.ErrExist when the lock is held.
func writeMarker(path string, marker Marker) error {
	data, err := codec.Marshal(marker)
	if err != nil {
		return fmt.Errorf("prioritylock: encoding marker: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := file.Write(data)
	if writeErr == nil {
		writeErr = file.Sync()
	}
	closeErr := file.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(path)
		return fmt.Errorf("prioritylock: writing marker %s: %w", path, writeErr)
	}
	return nil
}

// observedMarker is what a waiter saw when it inspected the lock
// file: the decoded marker when readable, and the file's mtime as a
// fallback identity and age source.
type observedMarker struct {
	marker   Marker
	decoded  bool
	modified time.Time
}

func observe(path string) (observedMarker, error) {
	info, err := os.Stat(path)
	if err != nil {
		return observedMarker{}, err
	}
	observed := observedMarker{modified: info.ModTime()}
	if marker, err := ReadMarker(path); err == nil {
		observed.marker = marker
		observed.decoded = true
	}
	return observed, nil
}

// acquiredAt returns the best available acquisition time.
func (o observedMarker) acquiredAt() time.Time {
	if o.decoded && !o.marker.AcquiredAt.IsZero() {
		return o.marker.AcquiredAt
	}
	return o.modified
}

// same reports whether two observations describe the same marker.
func (o observedMarker) same(other observedMarker) bool {
	if o.decoded && other.decoded {
		return o.marker.Holder == other.marker.Holder
	}
	return o.decoded == other.decoded && o.modified.Equal(other.modified)
}
