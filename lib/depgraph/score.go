// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "slices"

// Score weights. Unblocking potential dominates depth, which dominates
// declared priority; the magnitudes must stay an order apart.
const (
	unblockWeight  = 1000.0
	depthWeight    = 100.0
	priorityWeight = 10.0

	// priorityClamp bounds the priority term: every priority at or
	// above it contributes nothing.
	priorityClamp = 10
)

// ScoreDetail holds one node's scheduling score with the dimensions
// it was derived from.
type ScoreDetail struct {
	ID         int64   `json:"id"`
	Priority   int     `json:"priority"`
	Depth      int     `json:"depth"`
	Downstream int     `json:"downstream"`
	Score      float64 `json:"score"`
}

// Scores returns the scheduling score for every node in the snapshot.
// Higher scores should be attempted first.
func (engine *Engine) Scores(nodes []Node) map[int64]float64 {
	details := engine.ScoreDetails(nodes)
	scores := make(map[int64]float64, len(details))
	for _, detail := range details {
		scores[detail.ID] = detail.Score
	}
	return scores
}

// ScoreDetails returns the score breakdown for every node, in
// snapshot order.
func (engine *Engine) ScoreDetails(nodes []Node) []ScoreDetail {
	graph := Build(nodes)
	depth := graph.depths()
	downstream := graph.downstream(depth)

	maxDepth := 0
	maxDownstream := 0
	for i := range graph.nodes {
		maxDepth = max(maxDepth, depth[i])
		maxDownstream = max(maxDownstream, downstream[i])
	}

	details := make([]ScoreDetail, graph.Len())
	for i, node := range graph.nodes {
		details[i] = ScoreDetail{
			ID:         node.ID,
			Priority:   node.Priority,
			Depth:      depth[i],
			Downstream: downstream[i],
			Score:      score(node.Priority, depth[i], maxDepth, downstream[i], maxDownstream),
		}
	}
	return details
}

// score combines the three ranking dimensions.
func score(priority, depth, maxDepth, downstream, maxDownstream int) float64 {
	unblock := 0.0
	if maxDownstream > 0 {
		unblock = float64(downstream) / float64(maxDownstream)
	}
	depthScore := 1.0
	if maxDepth > 0 {
		depthScore = 1 - float64(depth)/float64(maxDepth)
	}
	priorityFactor := float64(priorityClamp-min(priority, priorityClamp)) / priorityClamp

	return unblockWeight*unblock + depthWeight*depthScore + priorityWeight*priorityFactor
}

// Rank returns the ready nodes ordered by descending score, with ties
// broken by priority then ID. Scores are computed over the whole
// snapshot, so a ready node that unblocks many others outranks one
// that unblocks nothing. Rank does not choose: the caller decides
// which entry to take.
func (engine *Engine) Rank(nodes []Node) []ScoreDetail {
	graph := Build(nodes)
	ready := graph.ready()
	if len(ready) == 0 {
		return nil
	}

	readySet := make(map[int64]struct{}, len(ready))
	for _, i := range ready {
		readySet[graph.nodes[i].ID] = struct{}{}
	}

	var ranked []ScoreDetail
	for _, detail := range engine.ScoreDetails(nodes) {
		if _, isReady := readySet[detail.ID]; isReady {
			ranked = append(ranked, detail)
		}
	}
	slices.SortFunc(ranked, func(a, b ScoreDetail) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return ranked
}
