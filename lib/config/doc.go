// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the backlog.
//
// Configuration comes from a single file named by either the
// BACKLOG_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery. Without a config
// file, the CLI uses [ForRoot] with its --root flag, which places the
// database and lock marker inside that directory.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without an explicit
// section waits five minutes before reclaiming a lock marker.
//
// ${BACKLOG_ROOT}, ${HOME}, and ${VAR:-default} are expanded in path
// fields after loading.
//
// This package depends only on depgraph, for the default limits.
package config
