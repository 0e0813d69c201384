// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prioritylock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processExists reports whether a process with the given PID exists
// on this host. Signal 0 performs the permission and existence checks
// without delivering anything; EPERM means the process exists but
// belongs to another user.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
