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

// Package graph implements the read-only, 2D-partitioned CSR + row-bitmap +
// BFELL-block edge store described in spec §4.1. It is built once by
// construction code outside this package's scope (R-MAT generation, edge
// redistribution -- see Builder) and never mutated by BFS.
package graph

import (
	"math/bits"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// BitsPerWord is the width of one row_bitmap word.
const BitsPerWord = 64

// BFELLSort is the BFELL block width (spec §4.1 "BFELL_SORT"), grounded on
// the original source's LOG_BFELL_SORT=8.
const BFELLSort = 256

// BlockOffset locates one BFELL block's slice into edgeArray/colLen: the
// block's edges start at edgeArray[EdgeStart], NumCols is the block's
// largest row body length, and its column-length entries occupy
// colLen[LengthStart : LengthStart+NumCols]. The block's nonzero rows
// occupy sortedIdx positions [0, rows in block).
type BlockOffset struct {
	EdgeStart   int64
	LengthStart int32
	NumCols     int32
}

// Graph is the local (per-process) CSR+bitmap+BFELL edge store.
//
// Invariants (spec §4.1, held for the life of the Graph):
//   - popcount(rowBitmap) == number of nonzero rows == len(blkOff)*... (see validate)
//   - for every nonzero row r with at least one edge in the block body,
//     sortedIdx[nz(r)] < colLen[block's first length slot] (with the
//     isolated-first-edge option a degree-1 row has no body edges and may
//     sit at or past that count)
//   - colLen is non-increasing within a block
//   - len(edgeArray) == sum(colLen)
type Graph struct {
	logLocalVerts int // lgl: log2(Nloc)
	logRows       int // lgR
	logCols       int // lgC

	rowBitmap []uint64 // one bit per potential local source row
	rowSums   []int32  // prefix popcount of rowBitmap, word granularity

	blkOff    []BlockOffset
	edgeArray []uint32 // destination vertices, BFELL-block-major
	colLen    []int32  // per column position within a block
	sortedIdx []uint8  // nz-index -> block-local sorted position

	// isolatedFirstEdge[nz] is the first outgoing edge of nonzero row nz,
	// stored separately so degree-1 vertices need no block lookup (spec
	// §4.1 "Optional isolated-first-edge optimization"). Present iff
	// useIsolatedFirstEdge is true; isolatedDegreeOne[nz] marks rows whose
	// only edge is the stored one, letting IterateOutEdges skip the block
	// walk entirely.
	useIsolatedFirstEdge bool
	isolatedFirstEdge    []uint32
	isolatedDegreeOne    []bool
}

// NumLocalVerts returns Nloc = 2^lgl.
func (g *Graph) NumLocalVerts() int { return 1 << uint(g.logLocalVerts) }

func (g *Graph) LogLocalVerts() int { return g.logLocalVerts }
func (g *Graph) LogRows() int       { return g.logRows }
func (g *Graph) LogCols() int       { return g.logCols }

// BitmapSizeLocal is the number of uint64 words needed for a bitmap over
// this process's local vertices.
func (g *Graph) BitmapSizeLocal() int {
	return (g.NumLocalVerts() + BitsPerWord - 1) / BitsPerWord
}

// BitmapSizeSrc is the bitmap size (in words) needed to represent every
// source row this process could have: Nloc * R (spec §4.2 current_queue).
func (g *Graph) BitmapSizeSrc() int {
	return (g.NumLocalVerts()<<uint(g.logRows) + BitsPerWord - 1) / BitsPerWord
}

// BitmapSizeTgt is the shared_visited bitmap size: every destination slot
// in the process row, Nloc * C.
func (g *Graph) BitmapSizeTgt() int {
	return (g.NumLocalVerts()<<uint(g.logCols) + BitsPerWord - 1) / BitsPerWord
}

// HasRow reports whether local source row has any outgoing edges.
func (g *Graph) HasRow(localRow int) bool {
	w := localRow / BitsPerWord
	b := uint(localRow % BitsPerWord)
	return g.rowBitmap[w]&(1<<b) != 0
}

// RowNZIndex returns the "nonzero index" of localRow: its ordinal among all
// nonzero rows seen so far. It is only valid when HasRow(localRow) is true.
// This is the O(1) "word popcount prefix sum + partial popcount" used
// throughout the BFELL literature, and is round-trip-tested against a
// linear scan in graph_test.go.
func (g *Graph) RowNZIndex(localRow int) int {
	w := localRow / BitsPerWord
	b := uint(localRow % BitsPerWord)
	mask := uint64(1)<<b - 1
	return int(g.rowSums[w]) + bits.OnesCount64(g.rowBitmap[w]&mask)
}

// IterateOutEdges walks nzIndex's outgoing edges column-by-column through
// its BFELL block, honoring colLen to stop early (spec §4.1). cb is called
// once per destination vertex; returning false stops the walk early, the
// optimization the bottom-up kernel depends on when it only needs the
// first neighbor present in the current queue.
func (g *Graph) IterateOutEdges(nzIndex int, cb func(tgt uint32) bool) {
	if g.useIsolatedFirstEdge && g.isolatedDegreeOne[nzIndex] {
		cb(g.isolatedFirstEdge[nzIndex])
		return
	}
	if g.useIsolatedFirstEdge {
		if !cb(g.isolatedFirstEdge[nzIndex]) {
			return
		}
	}
	b := nzIndex / BFELLSort
	s := int32(g.sortedIdx[nzIndex])
	off := g.blkOff[b]
	vlog.VI(2).Infof("graph: IterateOutEdges nz=%d block=%d sorted=%d cols=%d", nzIndex, b, s, off.NumCols)
	var base int64
	for c := int32(0); c < off.NumCols; c++ {
		stride := g.colLen[off.LengthStart+c]
		if s >= stride {
			break
		}
		idx := off.EdgeStart + base + int64(s)
		if !cb(g.edgeArray[idx]) {
			return
		}
		base += int64(stride)
	}
}

// validate checks the invariants spec §4.1 requires; called by
// Builder.Build and by tests.
func (g *Graph) validate() error {
	nzCount := 0
	for _, w := range g.rowBitmap {
		nzCount += bits.OnesCount64(w)
	}
	wantBlocks := (nzCount + BFELLSort - 1) / BFELLSort
	if nzCount > 0 && len(g.blkOff) != wantBlocks {
		return errors.Errorf("graph: %d nonzero rows need %d blocks, have %d", nzCount, wantBlocks, len(g.blkOff))
	}
	if len(g.sortedIdx) != nzCount {
		return errors.Errorf("graph: sortedIdx has %d entries, want %d", len(g.sortedIdx), nzCount)
	}
	var total int64
	for i, off := range g.blkOff {
		var prev int32 = 1 << 30
		for c := int32(0); c < off.NumCols; c++ {
			cl := g.colLen[off.LengthStart+c]
			if cl > prev {
				return errors.Errorf("graph: block %d colLen not non-increasing at column %d", i, c)
			}
			prev = cl
			total += int64(cl)
		}
	}
	if total != int64(len(g.edgeArray)) {
		return errors.Errorf("graph: edgeArray has %d entries, sum(colLen) is %d", len(g.edgeArray), total)
	}
	return nil
}
