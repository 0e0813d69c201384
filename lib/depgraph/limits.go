// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

const (
	// MaxDependencies is the default upper bound on the number of
	// dependencies a single feature may declare.
	MaxDependencies = 20

	// MaxDependencyDepth is the default bound on traversal depth for
	// cycle detection and reachability. It protects against malformed
	// or adversarial graphs; it is not a correctness limit.
	MaxDependencyDepth = 50
)

// Limits holds the static bounds the engine enforces. Zero-valued
// fields are replaced with the package defaults.
type Limits struct {
	MaxDependencies    int
	MaxDependencyDepth int
}

// DefaultLimits returns the package default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDependencies:    MaxDependencies,
		MaxDependencyDepth: MaxDependencyDepth,
	}
}

func (limits Limits) applyDefaults() Limits {
	if limits.MaxDependencies <= 0 {
		limits.MaxDependencies = MaxDependencies
	}
	if limits.MaxDependencyDepth <= 0 {
		limits.MaxDependencyDepth = MaxDependencyDepth
	}
	return limits
}

// Engine runs the graph algorithms with a fixed set of limits. The
// zero value is not usable; construct with [New] or [Default].
type Engine struct {
	limits Limits
}

// New returns an engine enforcing the given limits.
func New(limits Limits) *Engine {
	return &Engine{limits: limits.applyDefaults()}
}

// Default returns an engine enforcing [DefaultLimits].
func Default() *Engine {
	return New(DefaultLimits())
}

// Limits returns the limits the engine enforces.
func (engine *Engine) Limits() Limits {
	return engine.limits
}
