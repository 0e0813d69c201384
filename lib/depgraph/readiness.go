// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "slices"

// State is the scheduling state of one node.
type State string

const (
	// StatePassing: the work item is complete.
	StatePassing State = "passing"

	// StateInProgress: claimed by a worker, not complete, and every
	// present dependency passes.
	StateInProgress State = "in_progress"

	// StateReady: available to be claimed.
	StateReady State = "ready"

	// StateBlocked: at least one present dependency is not passing.
	StateBlocked State = "blocked"
)

// Ready returns the IDs that can be claimed now: not passing, not in
// progress, and every dependency either passing or absent from the
// snapshot. Absent dependencies are the caller's existence check to
// make; they do not hold a node back here. Results are sorted by
// priority then ID.
func (engine *Engine) Ready(nodes []Node) []int64 {
	graph := Build(nodes)
	ready := graph.ready()
	ids := make([]int64, len(ready))
	for k, i := range ready {
		ids[k] = graph.nodes[i].ID
	}
	return ids
}

// Blocked maps every non-passing node that has at least one present,
// non-passing dependency to exactly those dependencies, sorted
// ascending. In-progress nodes are included when blocked.
func (engine *Engine) Blocked(nodes []Node) map[int64][]int64 {
	return Build(nodes).blocked()
}

// Classify returns the scheduling state of every node.
func (engine *Engine) Classify(nodes []Node) map[int64]State {
	graph := Build(nodes)
	blocked := graph.blocked()
	states := make(map[int64]State, graph.Len())
	for _, node := range graph.nodes {
		switch {
		case node.Passes:
			states[node.ID] = StatePassing
		case len(blocked[node.ID]) > 0:
			states[node.ID] = StateBlocked
		case node.InProgress:
			states[node.ID] = StateInProgress
		default:
			states[node.ID] = StateReady
		}
	}
	return states
}

// ready returns the indices of claimable nodes sorted by priority
// then ID.
func (graph *Graph) ready() []int {
	var ready []int
	for i, node := range graph.nodes {
		if node.Passes || node.InProgress {
			continue
		}
		if graph.firstPendingDependency(i) >= 0 {
			continue
		}
		ready = append(ready, i)
	}
	slices.SortFunc(ready, func(a, b int) int {
		left, right := &graph.nodes[a], &graph.nodes[b]
		if left.Priority != right.Priority {
			return left.Priority - right.Priority
		}
		switch {
		case left.ID < right.ID:
			return -1
		case left.ID > right.ID:
			return 1
		}
		return 0
	})
	return ready
}

// blocked builds the blocked-by map for non-passing nodes.
func (graph *Graph) blocked() map[int64][]int64 {
	result := make(map[int64][]int64)
	for i, node := range graph.nodes {
		if node.Passes {
			continue
		}
		var pending []int
		for _, dependency := range graph.dependencies[i] {
			if !graph.nodes[dependency].Passes {
				pending = append(pending, dependency)
			}
		}
		if len(pending) > 0 {
			result[node.ID] = graph.sortedIDs(pending)
		}
	}
	return result
}

// firstPendingDependency returns the index of a present dependency of
// node i that is not passing, or -1 if there is none.
func (graph *Graph) firstPendingDependency(i int) int {
	for _, dependency := range graph.dependencies[i] {
		if !graph.nodes[dependency].Passes {
			return dependency
		}
	}
	return -1
}
