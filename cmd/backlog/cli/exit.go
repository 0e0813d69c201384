// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError requests a non-zero exit without an "error:" line. The
// command has already written whatever the user needs to see.
// "backlog next" with nothing ready and "backlog dep check" on an
// edge that would cycle both end this way.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this method to
// tell a reported outcome from an unexpected error.
func (e *ExitError) ExitCode() int {
	return e.Code
}
