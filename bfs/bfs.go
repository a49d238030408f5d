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

// Package bfs ties together the direction controller, search kernels,
// and expand phase into the per-level loop spec §2's
// "Data flow per level" describes. It has no teacher analogue as a single
// file -- it plays the role pileup/snp.pileupSNPMain's traverse.Each main
// loop plays for that package: the one place that knows the whole
// request/response shape of a run.
package bfs

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bfs500/direction"
	"github.com/grailbio/bfs500/expand"
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/grid"
	"github.com/grailbio/bfs500/kernel"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"github.com/pkg/errors"
)

// Engine runs repeated BFS traversals over one fixed, read-only Graph.
type Engine struct {
	Grid   *grid.Context
	Graph  *graph.Graph
	Layout wire.Layout

	// Parallelism bounds the traverse.Each fan-out the kernels use; 0
	// runs them with a single shard.
	Parallelism int
}

// NewEngine returns an Engine for g under grid context gc, deriving the
// predecessor layout from gc/g's dimensions.
func NewEngine(gc *grid.Context, g *graph.Graph) (*Engine, error) {
	layout, err := wire.NewLayout(gc.LgC(), gc.LgR(), g.LogLocalVerts())
	if err != nil {
		return nil, errors.Wrap(err, "bfs: NewEngine")
	}
	return &Engine{Grid: gc, Graph: g, Layout: layout}, nil
}

// Run executes one full BFS from root (a global vertex id already mapped
// to this process's local numbering by the caller, -1 if the root is not
// owned by this process) and returns the final traversal.State holding
// pred[].
func (e *Engine) Run(ctx context.Context, rootLocal int, rootOwnerRank int) (*traversal.State, error) {
	s := traversal.New(e.Graph, e.Layout)
	s.ResetForRun()

	ctrl := direction.NewController(uint64(e.Graph.NumLocalVerts()))
	totalVerts := uint64(e.Graph.NumLocalVerts()) << uint(e.Grid.LgR()+e.Grid.LgC())

	if rootLocal >= 0 && e.Grid.Rank == rootOwnerRank {
		s.SharedVisited.Set(rootLocal)
		s.VisitedOld.Set(rootLocal)
		s.SetPred(uint32(rootLocal), e.Layout.Encode(0, uint32(e.Grid.Col), uint32(e.Grid.Row), uint32(rootLocal)))
		p := traversal.NewProducer(s.NQTopDown)
		p.Push(uint32(rootLocal))
		p.Flush()
	}
	// Move the seeded root from the next-queue into CQList so level 1's
	// top-down kernel scans it.
	if err := expand.TopDown(ctx, e.Grid, s, uint(e.Graph.LogLocalVerts())); err != nil {
		return nil, errors.Wrap(err, "bfs: expand root")
	}

	mode := direction.TopDown
	level := 1
	for {
		var err error
		var levelNQ uint64

		switch mode {
		case direction.TopDown:
			levelNQ, err = e.runTopDownKernel(s, level)
		case direction.BottomUp:
			levelNQ, err = e.runBottomUpKernel(s, level)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "bfs: level %d (%s)", level, mode)
		}

		globalNQ, err := e.Grid.World.AllReduceSum(ctx, levelNQ)
		if err != nil {
			return nil, errors.Wrap(err, "bfs: all-reduce global NQ")
		}
		log.Debug.Printf("bfs: level=%d mode=%s local_nq=%d global_nq=%d", level, mode, levelNQ, globalNQ)
		if globalNQ == 0 {
			break
		}
		ctrl.Advance(globalNQ, totalVerts)
		nextMode := ctrl.Mode()
		if err := e.expand(ctx, s, ctrl, mode, nextMode); err != nil {
			return nil, errors.Wrapf(err, "bfs: expand after level %d (%s -> %s)", level, mode, nextMode)
		}
		mode = nextMode
		level++
	}
	return s, nil
}

// runTopDownKernel runs the top-down kernel over s.CQList, leaving newly
// discovered vertices in s.NQTopDown for the expand phase to collect.
func (e *Engine) runTopDownKernel(s *traversal.State, level int) (uint64, error) {
	producers := make([]*traversal.Producer, max(1, e.Parallelism))
	for i := range producers {
		producers[i] = traversal.NewProducer(s.NQTopDown)
	}
	if err := kernel.TopDown(e.Graph, s.CQList, s, e.Layout, level, uint32(e.Grid.Col), uint32(e.Grid.Row), e.Parallelism, producers); err != nil {
		return 0, err
	}
	return uint64(s.NQTopDown.Len()), nil
}

// runBottomUpKernel runs the bottom-up kernel over every local vertex not
// yet visited, testing reachability against s.SharedVisited -- the
// cumulative, cross-rank-replicated visited set both expand.BottomUp and
// expand.SwitchToBottomUp populate. Because the scan runs every level over
// every still-unvisited vertex, a cumulative test is equivalent to testing
// strictly the prior level's frontier: any vertex reachable from an older
// frontier member would already have been claimed on an earlier level's
// scan, so it is never missed or claimed early.
func (e *Engine) runBottomUpKernel(s *traversal.State, level int) (uint64, error) {
	s.SwapVisited()
	cqTest := func(v uint32) bool { return s.SharedVisited.Test(int(v)) }

	producers := make([]*traversal.PairProducer, max(1, e.Parallelism))
	for i := range producers {
		producers[i] = traversal.NewPairProducer(s.NQBottomUp)
	}
	if err := kernel.BottomUp(e.Graph, s, cqTest, e.Layout, level, uint32(e.Grid.Col), uint32(e.Grid.Row), e.Parallelism, producers); err != nil {
		return 0, err
	}
	return uint64(s.NQBottomUp.Len()), nil
}

// expand runs the spec §4.6 expand variant matching the (from, to)
// direction transition, turning the next-queue the kernel just produced
// into the following level's current-queue representation.
func (e *Engine) expand(ctx context.Context, s *traversal.State, ctrl *direction.Controller, from, to direction.Mode) error {
	lgl := uint(e.Graph.LogLocalVerts())
	switch {
	case from == direction.TopDown && to == direction.TopDown:
		return expand.TopDown(ctx, e.Grid, s, lgl)
	case from == direction.TopDown && to == direction.BottomUp:
		return expand.SwitchToBottomUp(ctx, e.Grid, s, lgl)
	case from == direction.BottomUp && to == direction.BottomUp:
		rep := ctrl.ChooseRepresentation(uint64(s.NQBottomUp.Len()), uint64(e.Graph.NumLocalVerts()<<uint(e.Grid.LgR())))
		return expand.BottomUp(ctx, e.Grid, s, rep)
	default: // BottomUp -> TopDown
		return expand.SwitchToTopDown(ctx, e.Grid, s, lgl)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
