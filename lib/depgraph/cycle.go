// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "slices"

const (
	white = iota // not yet visited
	gray         // on the current DFS stack
	black        // fully explored
)

// Cycles reports the cycles in a snapshot without producing an order.
// It is the same report [Engine.Sort] places in Result.Cycles.
func (engine *Engine) Cycles(nodes []Node) [][]int64 {
	return engine.Sort(nodes).Cycles
}

// findCycles runs a depth-bounded DFS over subset, following
// dependency edges but never leaving the subset. On a back-edge to a
// gray node it records the stack slice from that node to the current
// one, closed by repeating the first ID, and does not descend further
// along that edge.
//
// A branch that would grow the stack past maxDepth is abandoned
// without a report and its node left white, so a later root in subset
// can still explore it. Every reported path is closed.
func (graph *Graph) findCycles(subset []int, maxDepth int) [][]int64 {
	inSubset := make(map[int]struct{}, len(subset))
	for _, i := range subset {
		inSubset[i] = struct{}{}
	}

	color := make(map[int]int, len(subset))
	var stack []int
	var cycles [][]int64

	var visit func(i int)
	visit = func(i int) {
		if len(stack) >= maxDepth {
			return
		}
		color[i] = gray
		stack = append(stack, i)

		for _, next := range graph.dependencies[i] {
			if _, ok := inSubset[next]; !ok {
				continue
			}
			switch color[next] {
			case gray:
				start := slices.Index(stack, next)
				cycles = append(cycles, graph.pathIDs(stack[start:]))
			case white:
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		color[i] = black
	}

	for _, i := range subset {
		if color[i] == white {
			visit(i)
		}
	}
	if cycles == nil {
		return [][]int64{}
	}
	return cycles
}

// pathIDs converts a stack slice of indices to IDs, repeating the
// first ID at the end.
func (graph *Graph) pathIDs(path []int) []int64 {
	ids := make([]int64, 0, len(path)+1)
	for _, i := range path {
		ids = append(ids, graph.nodes[i].ID)
	}
	if len(path) > 0 {
		ids = append(ids, graph.nodes[path[0]].ID)
	}
	return ids
}
