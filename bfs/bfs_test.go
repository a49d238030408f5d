// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bfs

import (
	"context"
	"testing"

	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/grid"
	"github.com/grailbio/bfs500/internal/bfscheck"
	"github.com/grailbio/bfs500/transport/localcomm"
	"github.com/grailbio/bfs500/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// starGraph builds an undirected star with a center plus nLeaves leaves,
// on a single-rank (1x1) grid -- enough local vertices to force the
// direction controller through both a top-down and a bottom-up level
// (large enough frontier growth) while staying a single process, so no
// row/column replication semantics are exercised here (those are covered
// separately by expand_test.go).
func starGraph(t *testing.T, lgl int) *graph.Graph {
	t.Helper()
	n := 1 << uint(lgl)
	b := graph.NewBuilder(lgl, 0, 0, false)
	for leaf := 1; leaf < n; leaf++ {
		b.AddEdge(0, uint32(leaf))
		b.AddEdge(leaf, uint32(0))
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestEngineRunSingleRankStar(t *testing.T) {
	world, rowC, colC := localcomm.NewGrid(1, 1)
	gc, err := grid.New(1, 1, world[0], rowC[0], colC[0])
	require.NoError(t, err)

	g := starGraph(t, 4) // 16 local vertices: 1 center + 15 leaves
	eng, err := NewEngine(gc, g)
	require.NoError(t, err)

	s, err := eng.Run(context.Background(), 0, 0)
	require.NoError(t, err)

	// Every leaf must be visited at level 1, with the center as parent.
	for leaf := uint32(1); leaf < 16; leaf++ {
		assert.NotEqual(t, wire.Unvisited, s.Pred[leaf], "leaf %d never visited", leaf)
		d := eng.Layout.Decode(s.Pred[leaf])
		assert.Equal(t, 1, d.Level, "leaf %d at wrong level", leaf)
		assert.Equal(t, uint32(0), d.Local, "leaf %d has wrong parent", leaf)
	}

	tr := bfscheck.Tree{Layout: eng.Layout, Pred: s.Pred}
	levelOf := func(local uint32) (int, bool) {
		if s.Pred[local] == wire.Unvisited {
			if local == 0 {
				return 0, true
			}
			return 0, false
		}
		return eng.Layout.Decode(s.Pred[local]).Level, true
	}
	parentOf := func(local uint32) (uint32, bool) {
		if s.Pred[local] == wire.Unvisited {
			return 0, false
		}
		return eng.Layout.Decode(s.Pred[local]).Local, true
	}
	reachable := make(map[uint32]bool, 16)
	for i := uint32(0); i < 16; i++ {
		reachable[i] = true
	}

	assert.NoError(t, bfscheck.PredecessorUniqueness(tr))
	assert.NoError(t, bfscheck.LevelConsistency(tr, 0, levelOf))
	assert.NoError(t, bfscheck.EdgeValidity(g, tr, 0, parentOf))
	assert.NoError(t, bfscheck.ReachabilityCompleteness(g, tr, 0, reachable))
}

// lollipopGraph builds center 0, a middle layer {1..half} each joined to
// the center, and an outer layer {half+1..2*half} each joined to exactly
// one middle vertex -- so a single-rank run discovers the middle layer
// top-down, then (once the direction controller switches, which it
// always does here since Alpha's default makes any nonzero frontier
// switch) discovers the outer layer bottom-up, the transition the review
// flagged as untested. Vertex n-1 is left with no edges at all, covering
// the zero-degree-row path through HasRow/RowNZIndex.
func lollipopGraph(t *testing.T, lgl int) (g *graph.Graph, half int) {
	t.Helper()
	n := 1 << uint(lgl)
	half = (n - 1) / 2
	b := graph.NewBuilder(lgl, 0, 0, false)
	for m := 1; m <= half; m++ {
		b.AddEdge(0, uint32(m))
		b.AddEdge(uint32(m), 0)
		outer := uint32(m + half)
		b.AddEdge(uint32(m), outer)
		b.AddEdge(outer, uint32(m))
	}
	var err error
	g, err = b.Build()
	require.NoError(t, err)
	return g, half
}

func TestEngineRunSwitchesToBottomUpAndWritesPredecessors(t *testing.T) {
	world, rowC, colC := localcomm.NewGrid(1, 1)
	gc, err := grid.New(1, 1, world[0], rowC[0], colC[0])
	require.NoError(t, err)

	g, half := lollipopGraph(t, 5) // 32 local vertices: 1 + 15 middle + 15 outer + 1 isolated
	eng, err := NewEngine(gc, g)
	require.NoError(t, err)

	s, err := eng.Run(context.Background(), 0, 0)
	require.NoError(t, err)

	for m := 1; m <= half; m++ {
		require.NotEqual(t, wire.Unvisited, s.Pred[m], "middle %d never visited", m)
		d := eng.Layout.Decode(s.Pred[m])
		assert.Equal(t, 1, d.Level, "middle %d at wrong level", m)
		assert.Equal(t, uint32(0), d.Local, "middle %d has wrong parent", m)

		outer := m + half
		require.NotEqual(t, wire.Unvisited, s.Pred[outer], "outer %d never visited", outer)
		od := eng.Layout.Decode(s.Pred[outer])
		assert.Equal(t, 2, od.Level, "outer %d at wrong level", outer)
		assert.Equal(t, uint32(m), od.Local, "outer %d has wrong parent", outer)
	}

	// The last vertex has no edges at all and must stay unvisited rather
	// than panicking RowNZIndex/IterateOutEdges.
	assert.Equal(t, wire.Unvisited, s.Pred[len(s.Pred)-1])

	tr := bfscheck.Tree{Layout: eng.Layout, Pred: s.Pred}
	assert.NoError(t, bfscheck.PredecessorUniqueness(tr))
}

func TestEngineRunRootNotOwnedIsNoOp(t *testing.T) {
	world, rowC, colC := localcomm.NewGrid(1, 1)
	gc, err := grid.New(1, 1, world[0], rowC[0], colC[0])
	require.NoError(t, err)

	g := starGraph(t, 4)
	eng, err := NewEngine(gc, g)
	require.NoError(t, err)

	// rootOwnerRank != gc.Rank: this process owns no root, so nothing
	// should ever be visited (the single-rank grid makes this a
	// pathological case, but Run must still terminate cleanly).
	s, err := eng.Run(context.Background(), -1, 1)
	require.NoError(t, err)
	for i := range s.Pred {
		assert.Equal(t, wire.Unvisited, s.Pred[i])
	}
}
