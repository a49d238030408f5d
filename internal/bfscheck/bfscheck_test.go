package bfscheck

import (
	"testing"

	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/wire"
	"github.com/stretchr/testify/assert"
)

func chainGraph(t *testing.T) *graph.Graph {
	b := graph.NewBuilder(4, 1, 1, false)
	b.AddEdge(0, 1)
	b.AddEdge(1, 0)
	b.AddEdge(1, 2)
	b.AddEdge(2, 1)
	g, err := b.Build()
	assert.NoError(t, err)
	return g
}

func TestEdgeValidityAcceptsRealEdges(t *testing.T) {
	g := chainGraph(t)
	layout, _ := wire.NewLayout(1, 1, 4)
	pred := make([]wire.PredWord, g.NumLocalVerts())
	for i := range pred {
		pred[i] = wire.Unvisited
	}
	pred[1] = layout.Encode(1, 0, 0, 0)
	pred[2] = layout.Encode(2, 0, 0, 1)
	tr := Tree{Layout: layout, Pred: pred}

	parentOf := func(local uint32) (uint32, bool) {
		if pred[local] == wire.Unvisited {
			return 0, false
		}
		return layout.Decode(pred[local]).Local, true
	}
	assert.NoError(t, EdgeValidity(g, tr, 0, parentOf))
}

func TestEdgeValidityRejectsFabricatedEdge(t *testing.T) {
	g := chainGraph(t)
	layout, _ := wire.NewLayout(1, 1, 4)
	pred := make([]wire.PredWord, g.NumLocalVerts())
	for i := range pred {
		pred[i] = wire.Unvisited
	}
	// Vertex 3 has no edge to vertex 0, but we claim it as its parent.
	pred[3] = layout.Encode(1, 0, 0, 0)
	tr := Tree{Layout: layout, Pred: pred}

	parentOf := func(local uint32) (uint32, bool) {
		if pred[local] == wire.Unvisited {
			return 0, false
		}
		return layout.Decode(pred[local]).Local, true
	}
	assert.Error(t, EdgeValidity(g, tr, 0, parentOf))
}

func TestLevelConsistency(t *testing.T) {
	layout, _ := wire.NewLayout(1, 1, 4)
	pred := make([]wire.PredWord, 4)
	for i := range pred {
		pred[i] = wire.Unvisited
	}
	pred[0] = layout.Encode(0, 0, 0, 0)
	pred[1] = layout.Encode(1, 0, 0, 0)
	pred[2] = layout.Encode(2, 0, 0, 1)
	tr := Tree{Layout: layout, Pred: pred}

	level := map[uint32]int{0: 0, 1: 1, 2: 2}
	levelOf := func(local uint32) (int, bool) { l, ok := level[local]; return l, ok }
	assert.NoError(t, LevelConsistency(tr, 0, levelOf))

	level[2] = 5 // corrupt
	assert.Error(t, LevelConsistency(tr, 0, levelOf))
}

func TestReachabilityCompleteness(t *testing.T) {
	g := chainGraph(t)
	layout, _ := wire.NewLayout(1, 1, 4)
	pred := make([]wire.PredWord, g.NumLocalVerts())
	for i := range pred {
		pred[i] = wire.Unvisited
	}
	pred[1] = layout.Encode(1, 0, 0, 0)
	tr := Tree{Layout: layout, Pred: pred}

	reachable := map[uint32]bool{0: true, 1: true, 2: true}
	assert.Error(t, ReachabilityCompleteness(g, tr, 0, reachable)) // 2 never visited

	pred[2] = layout.Encode(2, 0, 0, 1)
	assert.NoError(t, ReachabilityCompleteness(g, tr, 0, reachable))
}
