// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the backlog build.
//
// Release builds inject the version through -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/backlog/lib/version.Version=1.2.0" ./cmd/backlog
//
// Otherwise the VCS revision recorded by the Go toolchain is used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the semantic version, set via -ldflags for releases.
var Version = "0.1.0-dev"

// Build describes the running binary.
type Build struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Modified bool   `json:"modified"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// Current returns the build information of the running binary.
func Current() Build {
	build := Build{
		Version:  Version,
		Revision: "unknown",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build.fromSettings(info.Settings)
	}
	return build
}

func (b *Build) fromSettings(settings []debug.BuildSetting) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			b.Revision = setting.Value
			if len(b.Revision) > 12 {
				b.Revision = b.Revision[:12]
			}
		case "vcs.modified":
			b.Modified = setting.Value == "true"
		}
	}
}

// String formats the build for "backlog version".
func (b Build) String() string {
	dirty := ""
	if b.Modified {
		dirty = "-dirty"
	}
	return fmt.Sprintf("backlog %s (%s%s)\n  Go: %s\n  Platform: %s",
		b.Version, b.Revision, dirty, b.Go, b.Platform)
}
