// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "slices"

// Depths returns, for every node, the length of its longest chain of
// present dependencies: 0 for a node with none, otherwise one more
// than its deepest dependency.
func (engine *Engine) Depths(nodes []Node) map[int64]int {
	graph := Build(nodes)
	return graph.idMap(graph.depths())
}

// Downstream returns, for every node, how many nodes completing it
// transitively unblocks. Shared descendants reached through more than
// one path are counted once per path.
func (engine *Engine) Downstream(nodes []Node) map[int64]int {
	graph := Build(nodes)
	return graph.idMap(graph.downstream(graph.depths()))
}

// depths computes dependency-chain depth per index with memoization.
// A node under evaluation reads as depth 0, which terminates
// recursion through cycles already present in the snapshot.
func (graph *Graph) depths() []int {
	depth := make([]int, graph.Len())
	done := make([]bool, graph.Len())
	visiting := make([]bool, graph.Len())

	var depthOf func(i int) int
	depthOf = func(i int) int {
		if done[i] || visiting[i] {
			return depth[i]
		}
		visiting[i] = true
		deepest := 0
		for _, dependency := range graph.dependencies[i] {
			if candidate := depthOf(dependency) + 1; candidate > deepest {
				deepest = candidate
			}
		}
		visiting[i] = false
		done[i] = true
		depth[i] = deepest
		return deepest
	}

	for i := range graph.nodes {
		depthOf(i)
	}
	return depth
}

// downstream accumulates unblock counts from the deepest nodes
// upward: every node's count is final before any of its dependencies
// consume it.
func (graph *Graph) downstream(depth []int) []int {
	order := make([]int, graph.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if depth[a] != depth[b] {
			return depth[b] - depth[a]
		}
		switch {
		case graph.nodes[a].ID < graph.nodes[b].ID:
			return -1
		case graph.nodes[a].ID > graph.nodes[b].ID:
			return 1
		}
		return 0
	})

	count := make([]int, graph.Len())
	for _, i := range order {
		for _, dependency := range graph.dependencies[i] {
			count[dependency] += 1 + count[i]
		}
	}
	return count
}

// idMap converts a per-index slice into a map keyed by node ID.
func (graph *Graph) idMap(values []int) map[int64]int {
	result := make(map[int64]int, len(values))
	for i, value := range values {
		result[graph.nodes[i].ID] = value
	}
	return result
}
