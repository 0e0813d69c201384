// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "container/heap"

// Result is the outcome of [Engine.Sort].
type Result struct {
	// Ordered is a permutation of the snapshot IDs. Sortable nodes
	// come first in dependency order with ties broken by priority
	// then ID. Nodes caught in or behind a cycle follow in snapshot
	// order; their position carries no scheduling meaning.
	Ordered []int64 `json:"ordered_features"`

	// Cycles lists the cycles found among the unsortable residue.
	// Each cycle repeats its first ID at the end, e.g. [1 3 5 1].
	Cycles [][]int64 `json:"circular_dependencies"`

	// Blocked maps each non-passing node to its present dependencies
	// that are not yet passing.
	Blocked map[int64][]int64 `json:"blocked_features"`

	// Missing maps each node to the dependency IDs it lists that are
	// absent from the snapshot.
	Missing map[int64][]int64 `json:"missing_dependencies"`
}

// Sort orders the snapshot with Kahn's algorithm. The ready set is a
// min-heap keyed on (priority, ID), so for any acyclic snapshot the
// output is fully deterministic. Sort never fails: when a cycle makes
// part of the snapshot unsortable, the residual nodes are appended in
// snapshot order and the cycles among them are reported.
func (engine *Engine) Sort(nodes []Node) Result {
	graph := Build(nodes)
	ordered := graph.kahnOrder()

	result := Result{
		Ordered: make([]int64, 0, graph.Len()),
		Cycles:  [][]int64{},
		Blocked: graph.blocked(),
		Missing: graph.Missing(),
	}
	for _, i := range ordered {
		result.Ordered = append(result.Ordered, graph.nodes[i].ID)
	}

	if len(ordered) < graph.Len() {
		emitted := make([]bool, graph.Len())
		for _, i := range ordered {
			emitted[i] = true
		}
		residual := make([]int, 0, graph.Len()-len(ordered))
		for i := range graph.nodes {
			if !emitted[i] {
				residual = append(residual, i)
				result.Ordered = append(result.Ordered, graph.nodes[i].ID)
			}
		}
		result.Cycles = graph.findCycles(residual, engine.limits.MaxDependencyDepth)
	}
	return result
}

// kahnOrder returns the indices Kahn's algorithm can emit. Indices
// left out participate in, or depend on, a cycle.
func (graph *Graph) kahnOrder() []int {
	inDegree := make([]int, len(graph.inDegree))
	copy(inDegree, graph.inDegree)

	ready := &nodeHeap{graph: graph}
	for i, degree := range inDegree {
		if degree == 0 {
			ready.indices = append(ready.indices, i)
		}
	}
	heap.Init(ready)

	ordered := make([]int, 0, graph.Len())
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		ordered = append(ordered, i)
		for _, dependent := range graph.dependents[i] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}
	return ordered
}

// nodeHeap is a min-heap of node indices ordered by (priority, ID).
type nodeHeap struct {
	graph   *Graph
	indices []int
}

func (h *nodeHeap) Len() int { return len(h.indices) }

func (h *nodeHeap) Less(a, b int) bool {
	left, right := &h.graph.nodes[h.indices[a]], &h.graph.nodes[h.indices[b]]
	if left.Priority != right.Priority {
		return left.Priority < right.Priority
	}
	return left.ID < right.ID
}

func (h *nodeHeap) Swap(a, b int) { h.indices[a], h.indices[b] = h.indices[b], h.indices[a] }

func (h *nodeHeap) Push(x any) { h.indices = append(h.indices, x.(int)) }

func (h *nodeHeap) Pop() any {
	old := h.indices
	last := old[len(old)-1]
	h.indices = old[:len(old)-1]
	return last
}
