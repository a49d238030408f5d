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

package kernel

import (
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"v.io/x/lib/vlog"
)

// BottomUp walks every unvisited local target vertex (VisitedOld bit clear)
// and, for each out-edge, asks whether the neighbor is in the current
// source-side current queue. On the first hit it claims the target,
// writes its encoded predecessor immediately (the source candidate is a
// local row this same process owns, so the full (level, col, row, local)
// predecessor is available without waiting on a cross-rank round trip),
// and emits the discovery pair so the expand phase can still replicate
// the new frontier across the row (spec §4.4).
//
// cqTest reports whether local source vertex v (row-local id) is present
// in this step's current queue. bfs.Engine passes a test against
// s.SharedVisited whichever representation the expand phase used.
func BottomUp(
	g *graph.Graph,
	s *traversal.State,
	cqTest func(v uint32) bool,
	layout wire.Layout,
	level int,
	selfCol, selfRow uint32,
	parallelism int,
	producers []*traversal.PairProducer,
) error {
	nLoc := g.NumLocalVerts()
	if parallelism <= 0 {
		parallelism = len(producers)
	}
	return traverse.Each(parallelism, func(shard int) error {
		start := (shard * nLoc) / parallelism
		end := ((shard + 1) * nLoc) / parallelism
		p := producers[shard]
		vlog.VI(1).Infof("kernel: bottom-up shard %d level=%d verts=[%d,%d)", shard, level, start, end)
		for local := start; local < end; local++ {
			if s.VisitedOld.Test(local) {
				continue
			}
			// A vertex already holds a predecessor if an earlier level (in
			// either direction) discovered it; visited_old/visited_new only
			// double-buffer discoveries made *within* a run of bottom-up
			// steps, so a vertex claimed by a top-down level before the
			// switch would otherwise be rescanned and re-claimed here.
			if s.Pred[local] != wire.Unvisited {
				continue
			}
			if !g.HasRow(local) {
				continue
			}
			var claimed bool
			var discoverySrc uint32
			nz := g.RowNZIndex(local)
			g.IterateOutEdges(nz, func(srcCandidate uint32) bool {
				if cqTest(srcCandidate) {
					claimed = true
					discoverySrc = srcCandidate
					return false
				}
				return true
			})
			if claimed && s.VisitedNew.TestAndSet(local) {
				pred := layout.Encode(level, selfCol, selfRow, discoverySrc)
				s.SetPred(uint32(local), pred)
				p.Push(traversal.Discovery{
					Pred:  pred,
					Local: uint32(local),
				})
			}
		}
		p.Flush()
		return nil
	})
}
