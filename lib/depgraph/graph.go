// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "slices"

// Node is the engine's view of one feature: identity, declared
// priority, dependency list, and completion state. Business fields
// (name, description) never reach the engine.
type Node struct {
	ID           int64   `json:"id"`
	Priority     int     `json:"priority"`
	Dependencies []int64 `json:"dependencies,omitempty"`
	Passes       bool    `json:"passes"`
	InProgress   bool    `json:"in_progress"`
}

// Graph is the derived dependency structure of one snapshot. Node IDs
// are mapped to dense indices in snapshot order; all edge lists hold
// indices. A Graph is built once per engine call and never mutated
// after [Build] returns.
type Graph struct {
	nodes []Node
	index map[int64]int

	// dependencies[i] holds the indices node i depends on, limited to
	// IDs present in the snapshot and de-duplicated.
	dependencies [][]int

	// dependents[i] holds the indices that depend on node i (the
	// reverse of dependencies).
	dependents [][]int

	// inDegree[i] is len(dependencies[i]): the number of present
	// dependencies that must be emitted before node i.
	inDegree []int

	// missing maps a node ID to the dependency IDs it lists that are
	// not in the snapshot, in declaration order.
	missing map[int64][]int64
}

// Build converts a flat snapshot into adjacency, reverse adjacency,
// and in-degree. Dependency IDs absent from the snapshot are recorded
// as missing and contribute no edge. Duplicate dependency IDs on one
// node collapse to a single edge. If the snapshot repeats an ID, the
// first occurrence wins and later ones are ignored.
func Build(nodes []Node) *Graph {
	graph := &Graph{
		nodes:   make([]Node, 0, len(nodes)),
		index:   make(map[int64]int, len(nodes)),
		missing: make(map[int64][]int64),
	}
	for _, node := range nodes {
		if _, exists := graph.index[node.ID]; exists {
			continue
		}
		graph.index[node.ID] = len(graph.nodes)
		graph.nodes = append(graph.nodes, node)
	}

	count := len(graph.nodes)
	graph.dependencies = make([][]int, count)
	graph.dependents = make([][]int, count)
	graph.inDegree = make([]int, count)

	for i, node := range graph.nodes {
		for _, dependencyID := range node.Dependencies {
			j, present := graph.index[dependencyID]
			if !present {
				graph.missing[node.ID] = append(graph.missing[node.ID], dependencyID)
				continue
			}
			if slices.Contains(graph.dependencies[i], j) {
				continue
			}
			graph.dependencies[i] = append(graph.dependencies[i], j)
			graph.dependents[j] = append(graph.dependents[j], i)
			graph.inDegree[i]++
		}
	}
	return graph
}

// Len returns the number of distinct nodes in the graph.
func (graph *Graph) Len() int {
	return len(graph.nodes)
}

// Has reports whether id is present in the snapshot.
func (graph *Graph) Has(id int64) bool {
	_, exists := graph.index[id]
	return exists
}

// IDs returns the node IDs in snapshot order.
func (graph *Graph) IDs() []int64 {
	ids := make([]int64, len(graph.nodes))
	for i := range graph.nodes {
		ids[i] = graph.nodes[i].ID
	}
	return ids
}

// Dependents returns the IDs that directly depend on id, sorted
// ascending. Returns nil for unknown IDs.
func (graph *Graph) Dependents(id int64) []int64 {
	i, exists := graph.index[id]
	if !exists {
		return nil
	}
	return graph.sortedIDs(graph.dependents[i])
}

// InDegree returns the number of present dependencies of id, or 0 for
// unknown IDs.
func (graph *Graph) InDegree(id int64) int {
	i, exists := graph.index[id]
	if !exists {
		return 0
	}
	return graph.inDegree[i]
}

// Missing returns a copy of the missing-dependency map.
func (graph *Graph) Missing() map[int64][]int64 {
	result := make(map[int64][]int64, len(graph.missing))
	for id, missing := range graph.missing {
		result[id] = slices.Clone(missing)
	}
	return result
}

// sortedIDs maps indices to IDs and sorts them ascending.
func (graph *Graph) sortedIDs(indices []int) []int64 {
	if len(indices) == 0 {
		return nil
	}
	ids := make([]int64, len(indices))
	for k, i := range indices {
		ids[k] = graph.nodes[i].ID
	}
	slices.Sort(ids)
	return ids
}
