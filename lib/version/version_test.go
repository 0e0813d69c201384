// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	build := Build{Revision: "unknown"}
	build.fromSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "GOOS", Value: "linux"},
	})
	if build.Revision != "0123456789ab" {
		t.Errorf("Revision = %q, want the 12-character prefix", build.Revision)
	}
	if !build.Modified {
		t.Error("Modified = false, want true")
	}
	if !strings.Contains(build.String(), "(0123456789ab-dirty)") {
		t.Errorf("String() = %q", build.String())
	}
}

func TestCurrent(t *testing.T) {
	build := Current()
	if build.Version != Version || build.Go == "" || !strings.Contains(build.Platform, "/") {
		t.Errorf("Current() = %+v", build)
	}
}
