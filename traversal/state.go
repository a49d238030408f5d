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

// Package traversal owns the per-level queues, visited bitmaps, and
// predecessor array described in spec §4.2. It is intentionally dumb:
// the search kernels (package kernel) and the expand phase (package
// expand) decide what goes into these structures; State only holds them
// and enforces the write-once predecessor invariant.
package traversal

import (
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/wire"
)

// State is one process's traversal state for the BFS currently in flight.
type State struct {
	g      *graph.Graph
	Layout wire.Layout

	// Pred holds one entry per local vertex; wire.Unvisited until written.
	Pred []wire.PredWord

	// VisitedOld is the frontier as of the start of the current bottom-up
	// step; VisitedNew accumulates this step's discoveries. SwapVisited() moves
	// New -> Old at each step boundary (spec §4.2).
	VisitedOld Bitmap
	VisitedNew Bitmap

	// SharedVisited is the destination-side bitmap replicated across the
	// process row, the bottom-up kernel's reachability oracle.
	SharedVisited Bitmap

	// CQBitmap is the source-side current-queue bitmap representation
	// (Nloc*R bits); CQList is the flat-list representation. Only one is
	// populated at a time, per the direction controller's choice.
	CQBitmap Bitmap
	CQList   []uint32

	// NQTopDown / NQBottomUp are the next-queue bags; exactly one is
	// written to in a given level depending on direction.
	NQTopDown  *Bag
	NQBottomUp *PairBag
}

// New allocates a State for graph g and the given predecessor bit layout.
func New(g *graph.Graph, layout wire.Layout) *State {
	nLoc := g.NumLocalVerts()
	pred := make([]wire.PredWord, nLoc)
	for i := range pred {
		pred[i] = wire.Unvisited
	}
	return &State{
		g:             g,
		Layout:        layout,
		Pred:          pred,
		VisitedOld:    NewBitmap(nLoc),
		VisitedNew:    NewBitmap(nLoc),
		SharedVisited: NewBitmap(g.NumLocalVerts() << uint(g.LogCols())),
		CQBitmap:      NewBitmap(nLoc << uint(g.LogRows())),
		NQTopDown:     NewBag(),
		NQBottomUp:    NewPairBag(),
	}
}

// SwapVisited exchanges VisitedOld and VisitedNew and clears the new one,
// per spec §4.2's bottom-up step boundary ("Swaps visited_new/visited_old
// at the start of every bottom-up step").
func (s *State) SwapVisited() {
	s.VisitedOld, s.VisitedNew = s.VisitedNew, s.VisitedOld
	s.VisitedNew.Clear()
}

// SetPred writes pred[local] = p and panics if pred[local] was already
// written. Spec §5's atomicity invariant: "only the thread that witnessed
// the 0->1 flip is allowed to write pred[v]". The kernels and exchange
// handlers call it only after their own TestAndSet on the relevant visited
// bitmap returned true; bfs.Engine writes the root's entry once at seeding.
func (s *State) SetPred(local uint32, p wire.PredWord) {
	if s.Pred[local] != wire.Unvisited {
		panic("traversal: pred written twice for the same vertex")
	}
	s.Pred[local] = p
}

// ResetForRun zeroes every piece of per-run state, per spec §4.2's
// "initialize_memory" lifecycle step.
func (s *State) ResetForRun() {
	for i := range s.Pred {
		s.Pred[i] = wire.Unvisited
	}
	s.VisitedOld.Clear()
	s.VisitedNew.Clear()
	s.SharedVisited.Clear()
	s.CQBitmap.Clear()
	s.CQList = nil
	s.NQTopDown.Drain()
	s.NQBottomUp.Drain()
}

// ResetQueuesForLevel clears both current-queue representations (CQBitmap
// and CQList) before a new level begins. It does not touch the next-queue
// bags; the expand phase drains those.
func (s *State) ResetQueuesForLevel() {
	s.CQBitmap.Clear()
	s.CQList = s.CQList[:0]
}
