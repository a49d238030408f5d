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

package graph

import (
	"math/bits"
	"sort"

	"github.com/pkg/errors"
)

// Builder is the construction-time seam spec §4.1 names: R-MAT generation,
// edge-list redistribution, and CSR construction are out of scope for this
// package (spec §1), but something external has to turn a redistributed
// edge list into the packed representation above. Builder is that
// something's interface; the implementation here is a direct, unoptimized
// one used by tests to build small graphs deterministically. A real
// construction pipeline would stream AddEdge calls from a redistributed
// edge list reader (spec §6.2) instead of holding everything in memory.
type Builder struct {
	logLocalVerts        int
	logRows              int
	logCols              int
	useIsolatedFirstEdge bool
	useHugePages         bool

	out [][]uint32 // out[localRow] = destination vertex ids, in insertion order
}

// NewBuilder starts a Builder for a local graph with 2^lgl local vertices,
// 2^lgR source rows, 2^lgC destination columns.
func NewBuilder(lgl, lgR, lgC int, useIsolatedFirstEdge bool) *Builder {
	return &Builder{
		logLocalVerts:        lgl,
		logRows:              lgR,
		logCols:              lgC,
		useIsolatedFirstEdge: useIsolatedFirstEdge,
		out:                  make([][]uint32, 1<<uint(lgl)),
	}
}

// WithHugePages makes Build allocate the final edge_array through the
// huge-page-backed allocator (graph §4.1) instead of plain heap memory.
// Worthwhile once edge_array spans many gigabytes; skipped by default so
// small test graphs don't pay the mmap syscall.
func (b *Builder) WithHugePages() *Builder {
	b.useHugePages = true
	return b
}

// AddEdge records a local-source -> local-destination edge. tgt is already
// in the destination-local-id space IterateOutEdges yields (i.e. whatever
// encoding the caller's expand/bottom-up code expects, typically
// wire.PackTwodVertex(col, local, lgl)).
func (b *Builder) AddEdge(localSrcRow int, tgt uint32) {
	b.out[localSrcRow] = append(b.out[localSrcRow], tgt)
}

// Build packs the accumulated adjacency lists into a Graph, computing
// row_bitmap, row_sums, and the BFELL blocks (sorted by degree within each
// block, descending, so colLen is non-increasing as spec §4.1 requires).
func (b *Builder) Build() (*Graph, error) {
	if b.logLocalVerts < 1 {
		// spec §9 open question, resolved in SPEC_FULL.md/DESIGN.md: Nloc
		// must be even so the bottom-up ring pipeline's half-bitmap width
		// is always an integer.
		return nil, errors.Errorf("graph: logLocalVerts must be >= 1, got %d", b.logLocalVerts)
	}
	nLoc := 1 << uint(b.logLocalVerts)
	nWords := (nLoc + BitsPerWord - 1) / BitsPerWord

	g := &Graph{
		logLocalVerts:        b.logLocalVerts,
		logRows:              b.logRows,
		logCols:              b.logCols,
		rowBitmap:            make([]uint64, nWords),
		rowSums:              make([]int32, nWords),
		useIsolatedFirstEdge: b.useIsolatedFirstEdge,
	}

	// Pass 1: row_bitmap + row_sums (prefix popcount, word granularity).
	var nzRows []int
	for row := 0; row < nLoc; row++ {
		if len(b.out[row]) == 0 {
			continue
		}
		w, bit := row/BitsPerWord, uint(row%BitsPerWord)
		g.rowBitmap[w] |= 1 << bit
		nzRows = append(nzRows, row)
	}
	var running int32
	for w := 0; w < nWords; w++ {
		g.rowSums[w] = running
		running += int32(bits.OnesCount64(g.rowBitmap[w]))
	}

	nz := len(nzRows)
	g.sortedIdx = make([]uint8, nz)
	if b.useIsolatedFirstEdge {
		g.isolatedFirstEdge = make([]uint32, nz)
		g.isolatedDegreeOne = make([]bool, nz)
	}

	// Pass 2: build each BFELL block. Rows within a block are sorted by
	// descending degree so col_len (the per-column surviving-row count) is
	// non-increasing, letting IterateOutEdges stop at the first column
	// whose stride the row's sorted position no longer fits.
	for blockStart := 0; blockStart < nz; blockStart += BFELLSort {
		blockEnd := blockStart + BFELLSort
		if blockEnd > nz {
			blockEnd = nz
		}
		blockRows := append([]int(nil), nzRows[blockStart:blockEnd]...)
		sort.SliceStable(blockRows, func(i, j int) bool {
			return len(b.out[blockRows[i]]) > len(b.out[blockRows[j]])
		})

		maxDeg := 0
		if len(blockRows) > 0 {
			maxDeg = len(b.out[blockRows[0]])
		}
		// isolated-first-edge optimization consumes one edge per row
		// outside the block body.
		bodyDeg := func(row int) int {
			d := len(b.out[row])
			if b.useIsolatedFirstEdge && d > 0 {
				d--
			}
			return d
		}
		maxBodyDeg := 0
		for _, row := range blockRows {
			if d := bodyDeg(row); d > maxBodyDeg {
				maxBodyDeg = d
			}
		}
		_ = maxDeg

		lengthStart := int32(len(g.colLen))
		edgeStart := int64(len(g.edgeArray))
		colLen := make([]int32, maxBodyDeg)
		for c := 0; c < maxBodyDeg; c++ {
			count := int32(0)
			for _, row := range blockRows {
				if bodyDeg(row) > c {
					count++
				}
			}
			colLen[c] = count
		}
		g.colLen = append(g.colLen, colLen...)

		edges := make([]uint32, 0, sumInt32(colLen))
		for c := 0; c < maxBodyDeg; c++ {
			for _, row := range blockRows {
				if bodyDeg(row) > c {
					edgeIdx := c
					if b.useIsolatedFirstEdge {
						edgeIdx++
					}
					edges = append(edges, b.out[row][edgeIdx])
				}
			}
		}
		g.edgeArray = append(g.edgeArray, edges...)

		for s, row := range blockRows {
			nzIdx := blockStart + s
			g.sortedIdx[nzIdx] = uint8(s)
			if b.useIsolatedFirstEdge {
				g.isolatedFirstEdge[nzIdx] = b.out[row][0]
				g.isolatedDegreeOne[nzIdx] = len(b.out[row]) == 1
			}
		}
		g.blkOff = append(g.blkOff, BlockOffset{
			EdgeStart:   edgeStart,
			LengthStart: lengthStart,
			NumCols:     int32(maxBodyDeg),
		})
	}

	if b.useHugePages {
		packed := hugeUint32Slice(len(g.edgeArray))
		copy(packed, g.edgeArray)
		g.edgeArray = packed
	}

	if err := g.validate(); err != nil {
		return nil, errors.Wrap(err, "graph: Build produced an invalid graph")
	}
	return g, nil
}

func sumInt32(s []int32) int32 {
	var t int32
	for _, v := range s {
		t += v
	}
	return t
}
