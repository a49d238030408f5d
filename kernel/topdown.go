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

// Package kernel implements the two local search steps of spec §4.3/§4.4:
// for each vertex in the current queue, walk its adjacency list and try to
// claim each unvisited neighbor. The outer per-worker partitioning follows
// pileup/snp.pileupSNPMain's traverse.Each-sharded main loop; the inner
// strided column walk over a packed, column-major buffer is the same shape
// biosimd's PackedSeqCount gives a 4-bit-packed byte slice.
package kernel

import (
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"v.io/x/lib/vlog"
)

// TopDown walks every vertex in cq (this process's current-queue entries,
// packed as wire.TwodVertex(col, local) by the expand phase) and, for each
// out-edge target local vertex whose bit in sharedVisited is not yet set,
// claims it, writes its encoded predecessor with s.SetPred, and appends the
// target's local id to the producer's next-queue
// (spec §4.3: "expand_direction == top_down kernel").
//
// A cq entry's local bits name a local source row, not a graph nz-index;
// rows with no outgoing edges (HasRow false) are skipped, and the
// corresponding nz-index (RowNZIndex) is what is actually fed to
// g.IterateOutEdges -- the same row_bitmap/RowNZIndex gate
// internal/bfscheck.hasEdge uses.
//
// level is the BFS level being discovered (the level of the targets, one
// past cq's level); selfRow/selfCol identify this process's position in
// the 2D grid for predecessor encoding. parallelism 0 uses one shard per
// producer (len(producers)).
func TopDown(
	g *graph.Graph,
	cq []uint32,
	s *traversal.State,
	layout wire.Layout,
	level int,
	selfCol, selfRow uint32,
	parallelism int,
	producers []*traversal.Producer,
) error {
	n := len(cq)
	if n == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = len(producers)
	}
	lgl := uint(g.LogLocalVerts())
	return traverse.Each(parallelism, func(shard int) error {
		start := (shard * n) / parallelism
		end := ((shard + 1) * n) / parallelism
		p := producers[shard]
		vlog.VI(1).Infof("kernel: top-down shard %d level=%d cq=[%d,%d)", shard, level, start, end)
		for i := start; i < end; i++ {
			srcLocal := wire.TwodVertex(cq[i]).Local(lgl)
			if !g.HasRow(int(srcLocal)) {
				continue
			}
			nz := g.RowNZIndex(int(srcLocal))
			g.IterateOutEdges(nz, func(tgtLocal uint32) bool {
				if s.SharedVisited.TestAndSet(int(tgtLocal)) {
					pred := layout.Encode(level, selfCol, selfRow, srcLocal)
					s.SetPred(tgtLocal, pred)
					p.Push(tgtLocal)
				}
				return true
			})
		}
		p.Flush()
		return nil
	})
}
