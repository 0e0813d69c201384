// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel causes wrapped by [RejectionError]. Match with errors.Is.
var (
	ErrTooManyDependencies = errors.New("too many dependencies")
	ErrSelfDependency      = errors.New("feature cannot depend on itself")
	ErrDuplicateDependency = errors.New("duplicate dependency")
	ErrUnknownDependency   = errors.New("dependency does not exist")
	ErrWouldCycle          = errors.New("dependency would create a cycle")
)

// RejectionError reports a structural rejection of a proposed
// dependency change. Rejections are expected caller mistakes; the
// exposing layer turns Reason into a user-facing message.
type RejectionError struct {
	FeatureID int64
	Reason    string
	cause     error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("feature %d: %s", e.FeatureID, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.cause
}

func reject(featureID int64, cause error, format string, args ...any) *RejectionError {
	return &RejectionError{
		FeatureID: featureID,
		Reason:    fmt.Sprintf(format, args...),
		cause:     cause,
	}
}

// ValidateDependencies checks a complete proposed dependency list for
// featureID without traversing any graph: the list must respect the
// dependency limit, must not name featureID, must not repeat an ID,
// and must only name IDs in known. Returns nil when acceptable.
func (engine *Engine) ValidateDependencies(featureID int64, proposed []int64, known map[int64]struct{}) error {
	if len(proposed) > engine.limits.MaxDependencies {
		return reject(featureID, ErrTooManyDependencies,
			"maximum %d dependencies allowed, got %d", engine.limits.MaxDependencies, len(proposed))
	}
	if slices.Contains(proposed, featureID) {
		return reject(featureID, ErrSelfDependency, "a feature cannot depend on itself")
	}
	seen := make(map[int64]struct{}, len(proposed))
	for _, dependencyID := range proposed {
		if _, duplicate := seen[dependencyID]; duplicate {
			return reject(featureID, ErrDuplicateDependency, "duplicate dependency on feature %d", dependencyID)
		}
		seen[dependencyID] = struct{}{}
		if _, exists := known[dependencyID]; !exists {
			return reject(featureID, ErrUnknownDependency, "dependency feature %d does not exist", dependencyID)
		}
	}
	return nil
}

// WouldCreateCycle reports whether adding the edge "source depends on
// target" would close a cycle, by asking whether target can already
// reach source through existing dependency edges. An edge from a node
// to itself is always a cycle. A traversal deeper than
// MaxDependencyDepth cannot be proven safe and also reports true.
//
// The answer is advisory: the store must call this before it commits
// the edge.
func (engine *Engine) WouldCreateCycle(nodes []Node, source, target int64) bool {
	if source == target {
		return true
	}
	return Build(nodes).reaches(target, source, engine.limits.MaxDependencyDepth)
}

// CheckEdge validates adding the single edge "source depends on
// target" against the snapshot: both must exist, target must not
// already be a dependency, the limit must not be exceeded, and the
// edge must not create a cycle. Returns a [*RejectionError] or nil.
func (engine *Engine) CheckEdge(nodes []Node, source, target int64) error {
	if source == target {
		return reject(source, ErrSelfDependency, "a feature cannot depend on itself")
	}
	graph := Build(nodes)
	i, exists := graph.index[source]
	if !exists {
		return reject(source, ErrUnknownDependency, "feature %d does not exist", source)
	}
	if !graph.Has(target) {
		return reject(source, ErrUnknownDependency, "dependency feature %d does not exist", target)
	}
	current := graph.nodes[i].Dependencies
	for _, dependencyID := range current {
		if dependencyID == target {
			return reject(source, ErrDuplicateDependency, "already depends on feature %d", target)
		}
	}
	if len(current)+1 > engine.limits.MaxDependencies {
		return reject(source, ErrTooManyDependencies,
			"maximum %d dependencies allowed, got %d", engine.limits.MaxDependencies, len(current)+1)
	}
	if graph.reaches(target, source, engine.limits.MaxDependencyDepth) {
		return reject(source, ErrWouldCycle,
			"depending on feature %d would create a circular dependency", target)
	}
	return nil
}

// reaches reports whether from can reach to by following dependency
// edges. An unknown from reaches nothing. A to absent from the
// snapshot is still reached by any visited node that names it in its
// raw dependency list. Exceeding maxDepth returns true.
func (graph *Graph) reaches(from, to int64, maxDepth int) bool {
	start, exists := graph.index[from]
	if !exists {
		return false
	}
	goal, goalPresent := graph.index[to]

	visited := make([]bool, graph.Len())
	var search func(i, depth int) bool
	search = func(i, depth int) bool {
		if goalPresent && i == goal {
			return true
		}
		if visited[i] {
			return false
		}
		if depth > maxDepth {
			return true
		}
		visited[i] = true
		if !goalPresent && slices.Contains(graph.nodes[i].Dependencies, to) {
			return true
		}
		for _, dependency := range graph.dependencies[i] {
			if search(dependency, depth+1) {
				return true
			}
		}
		return false
	}
	return search(start, 0)
}
