// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the backlog CLI.
//
// A [Command] tree dispatches on the first positional argument,
// parses pflag flags for the leaf command, and suggests the closest
// command or flag name on typos. Flag sets are usually derived from a
// params struct with [FlagsFromParams]: tagged fields become flags,
// embedded [JSONOutput] adds --json, and fields implementing
// [FlagBinder] add their own flags.
//
// Commands that finish with a non-zero status but have already
// reported the outcome (for example "next" when nothing is ready)
// return an [ExitError] so main exits without printing an error line.
package cli
