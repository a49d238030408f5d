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

// Package expand implements the inter-level collective phase of spec
// §4.6: turning a distributed next-queue into the next current-queue in
// whatever representation the direction controller picked for the
// following level. Each function here corresponds to one of the spec's
// four named variants.
package expand

import (
	"context"

	"github.com/golang/snappy"
	"github.com/grailbio/bfs500/direction"
	"github.com/grailbio/bfs500/grid"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"github.com/pkg/errors"
)

func drainBagAsList(bag *traversal.Bag) []uint32 {
	chunks := bag.Drain()
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]uint32, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func encodeList(ids []uint32, col uint32, lgl uint) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(wire.PackTwodVertex(col, id, lgl))
	}
	return out
}

func uint32sToBytes(v []uint32) []byte {
	b := make([]byte, len(v)*4)
	for i, w := range v {
		b[4*i] = byte(w)
		b[4*i+1] = byte(w >> 8)
		b[4*i+2] = byte(w >> 16)
		b[4*i+3] = byte(w >> 24)
	}
	return b
}

func bytesToUint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
	}
	return out
}

// TopDown flattens s.NQTopDown's chunks, OR's in the local column's high
// bits, and all-gathers the result within the process column so every row
// in the grid replicates the full column's next-queue as the next
// current-queue (spec §4.6 "Top-down expand").
func TopDown(ctx context.Context, g *grid.Context, s *traversal.State, lglSrc uint) error {
	ids := drainBagAsList(s.NQTopDown)
	payload := encodeList(ids, uint32(g.Col), lglSrc)
	gathered, err := g.ColC.AllGatherV(ctx, uint32sToBytes(payload))
	if err != nil {
		return errors.Wrap(err, "expand: TopDown AllGatherV")
	}
	var cq []uint32
	for _, part := range gathered {
		cq = append(cq, bytesToUint32s(part)...)
	}
	s.CQList = cq
	return nil
}

// SwitchToBottomUp flattens s.NQTopDown with destination-format high bits,
// all-gathers within the process row, then ORs every received id into
// shared_visited -- spec §4.6's "Top-down->bottom-up switch expand". The
// fold runs sequentially on the calling goroutine; it uses AtomicOr, so it
// stays safe alongside other concurrent writers of shared_visited.
func SwitchToBottomUp(ctx context.Context, g *grid.Context, s *traversal.State, lglTgt uint) error {
	ids := drainBagAsList(s.NQTopDown)
	payload := encodeList(ids, uint32(g.Row), lglTgt)
	gathered, err := g.RowC.AllGatherV(ctx, uint32sToBytes(payload))
	if err != nil {
		return errors.Wrap(err, "expand: SwitchToBottomUp AllGatherV")
	}
	for _, part := range gathered {
		for _, w := range bytesToUint32s(part) {
			local := wire.TwodVertex(w).Local(lglTgt)
			s.SharedVisited.AtomicOr(int(local))
		}
	}
	return nil
}

// BottomUp materializes the next current-queue from s.NQBottomUp's
// discoveries. If the frontier is large, bitmap representations are
// all-gathered within the process row; otherwise a compact list is
// all-gathered within the row and each id is OR'd into shared_visited
// (spec §4.6 "Bottom-up expand").
func BottomUp(ctx context.Context, g *grid.Context, s *traversal.State, rep direction.Representation) error {
	chunks := s.NQBottomUp.Drain()
	switch rep {
	case direction.BitmapRepresentation:
		local := traversal.NewBitmap(len(s.SharedVisited) * 64)
		for _, c := range chunks {
			for _, d := range c {
				local.Set(int(d.Local))
			}
		}
		// Bitmaps are the large-payload case (the whole local vertex range,
		// not just the discoveries), so this is the one expand variant worth
		// compressing before the collective.
		gathered, err := g.RowC.AllGatherV(ctx, snappy.Encode(nil, bitmapToBytes(local)))
		if err != nil {
			return errors.Wrap(err, "expand: BottomUp AllGatherV(bitmap)")
		}
		for _, part := range gathered {
			raw, err := snappy.Decode(nil, part)
			if err != nil {
				return errors.Wrap(err, "expand: BottomUp snappy decode")
			}
			bm := bytesToBitmap(raw)
			for i, w := range bm {
				if i < len(s.SharedVisited) {
					s.SharedVisited[i] |= w
				}
			}
		}
	default:
		var ids []uint32
		for _, c := range chunks {
			for _, d := range c {
				ids = append(ids, d.Local)
			}
		}
		gathered, err := g.RowC.AllGatherV(ctx, uint32sToBytes(ids))
		if err != nil {
			return errors.Wrap(err, "expand: BottomUp AllGatherV(list)")
		}
		for _, part := range gathered {
			for _, local := range bytesToUint32s(part) {
				s.SharedVisited.AtomicOr(int(local))
			}
		}
	}
	return nil
}

// SwitchToTopDown flattens s.NQBottomUp's discoveries to a list with
// column-format high bits and all-gathers within the process row, setting
// CQList for the next (top-down) level (spec §4.6 "Bottom-up->top-down
// switch expand").
func SwitchToTopDown(ctx context.Context, g *grid.Context, s *traversal.State, lgl uint) error {
	chunks := s.NQBottomUp.Drain()
	ids := make([]uint32, 0, len(chunks))
	for _, c := range chunks {
		for _, d := range c {
			ids = append(ids, uint32(wire.PackTwodVertex(uint32(g.Col), d.Local, lgl)))
		}
	}
	gathered, err := g.RowC.AllGatherV(ctx, uint32sToBytes(ids))
	if err != nil {
		return errors.Wrap(err, "expand: SwitchToTopDown AllGatherV")
	}
	var cq []uint32
	for _, part := range gathered {
		cq = append(cq, bytesToUint32s(part)...)
	}
	s.CQList = cq
	return nil
}

func bitmapToBytes(b traversal.Bitmap) []byte {
	out := make([]byte, len(b)*8)
	for i, w := range b {
		for j := 0; j < 8; j++ {
			out[8*i+j] = byte(w >> uint(8*j))
		}
	}
	return out
}

func bytesToBitmap(buf []byte) traversal.Bitmap {
	n := len(buf) / 8
	out := make(traversal.Bitmap, n)
	for i := 0; i < n; i++ {
		var w uint64
		for j := 0; j < 8; j++ {
			w |= uint64(buf[8*i+j]) << uint(8*j)
		}
		out[i] = w
	}
	return out
}
