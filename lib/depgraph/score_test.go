// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- Depth and downstream ---

func TestDepthsChainAndDiamond(t *testing.T) {
	//     1
	//    / \
	//   2   3
	//    \ /
	//     4
	nodes := []Node{
		node(1, 1),
		node(2, 1, 1),
		node(3, 1, 1),
		node(4, 1, 2, 3),
		node(5, 1, 404),
	}
	depths := Default().Depths(nodes)
	want := map[int64]int{1: 0, 2: 1, 3: 1, 4: 2, 5: 0}
	for id, depth := range want {
		if depths[id] != depth {
			t.Errorf("depth(%d) = %d, want %d", id, depths[id], depth)
		}
	}
}

func TestDownstreamAccumulatesPerPath(t *testing.T) {
	nodes := []Node{
		node(1, 1),
		node(2, 1, 1),
		node(3, 1, 1),
		node(4, 1, 2, 3),
	}
	downstream := Default().Downstream(nodes)
	// 4 is reached through both 2 and 3, so it counts twice for 1.
	want := map[int64]int{1: 4, 2: 1, 3: 1, 4: 0}
	for id, count := range want {
		if downstream[id] != count {
			t.Errorf("downstream(%d) = %d, want %d", id, downstream[id], count)
		}
	}
}

func TestDepthsTerminateOnCycle(t *testing.T) {
	depths := Default().Depths([]Node{node(1, 1, 2), node(2, 1, 1)})
	if len(depths) != 2 {
		t.Fatalf("Depths returned %d entries, want 2", len(depths))
	}
}

func TestDepthsWideDiamondLadder(t *testing.T) {
	// A ladder of 40 diamonds has 2^40 root-to-leaf paths. Without
	// memoization this would not finish.
	var nodes []Node
	nodes = append(nodes, node(1, 1))
	previous := int64(1)
	next := int64(2)
	for range 40 {
		left, right, join := next, next+1, next+2
		nodes = append(nodes,
			node(left, 1, previous),
			node(right, 1, previous),
			node(join, 1, left, right),
		)
		previous = join
		next += 3
	}
	depths := Default().Depths(nodes)
	if depths[previous] != 80 {
		t.Errorf("depth of last join = %d, want 80", depths[previous])
	}
}

// --- Scores ---

func TestScoresFormula(t *testing.T) {
	// 1 <- 2 <- 3, plus an isolated 4 with priority 15.
	nodes := []Node{
		node(1, 0),
		node(2, 4, 1),
		node(3, 10, 2),
		node(4, 15),
	}
	scores := Default().Scores(nodes)

	// downstream: 1=2, 2=1, 3=0, 4=0 (max 2); depth: 1=0, 2=1, 3=2, 4=0 (max 2).
	want := map[int64]float64{
		1: 1000*1.0 + 100*1.0 + 10*1.0,
		2: 1000*0.5 + 100*0.5 + 10*0.6,
		3: 1000*0.0 + 100*0.0 + 10*0.0,
		4: 1000*0.0 + 100*1.0 + 10*0.0,
	}
	for id, score := range want {
		if !approxEqual(scores[id], score) {
			t.Errorf("score(%d) = %v, want %v", id, scores[id], score)
		}
	}
}

func TestScoresNoEdges(t *testing.T) {
	scores := Default().Scores([]Node{node(1, 0), node(2, 10)})
	if !approxEqual(scores[1], 110) {
		t.Errorf("score(1) = %v, want 110", scores[1])
	}
	if !approxEqual(scores[2], 100) {
		t.Errorf("score(2) = %v, want 100", scores[2])
	}
}

func TestScoresDownstreamMonotonicity(t *testing.T) {
	// 1 and 2 are identical except that 1 unblocks two features and
	// 2 unblocks one.
	nodes := []Node{
		node(1, 3),
		node(2, 3),
		node(10, 3, 1),
		node(11, 3, 1),
		node(12, 3, 2),
	}
	scores := Default().Scores(nodes)
	if scores[1] <= scores[2] {
		t.Errorf("score(1) = %v, score(2) = %v; larger downstream must score strictly higher", scores[1], scores[2])
	}
}

func TestScoresBounded(t *testing.T) {
	nodes := []Node{node(1, 0), node(2, 0, 1), node(3, 100, 2), node(4, 7, 1, 2)}
	for id, score := range Default().Scores(nodes) {
		if score < 0 || score > 1110+1e-9 {
			t.Errorf("score(%d) = %v, want within [0, 1110]", id, score)
		}
	}
}

// --- Rank ---

func TestRankOrdersReadyByScore(t *testing.T) {
	nodes := []Node{
		node(1, 5),       // unblocks 3 and 4
		node(2, 1),       // unblocks nothing
		node(3, 1, 1),    // blocked
		node(4, 1, 1),    // blocked
		passing(node(5, 0)),
	}
	ranked := Default().Rank(nodes)
	if len(ranked) != 2 {
		t.Fatalf("Rank returned %d entries, want 2: %+v", len(ranked), ranked)
	}
	if ranked[0].ID != 1 || ranked[1].ID != 2 {
		t.Errorf("Rank order = [%d %d], want [1 2]", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].Downstream != 2 {
		t.Errorf("ranked[0].Downstream = %d, want 2", ranked[0].Downstream)
	}
}

func TestRankTieBreaksByPriorityThenID(t *testing.T) {
	ranked := Default().Rank([]Node{node(7, 12), node(3, 12), node(5, 11)})
	var ids []int64
	for _, entry := range ranked {
		ids = append(ids, entry.ID)
	}
	// All three score 100: priority 11 and 12 both clamp to zero.
	want := []int64{5, 3, 7}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Rank IDs = %v, want %v", ids, want)
		}
	}
}

func TestRankNothingReady(t *testing.T) {
	if ranked := Default().Rank([]Node{passing(node(1, 1))}); ranked != nil {
		t.Errorf("Rank = %+v, want nil", ranked)
	}
}
