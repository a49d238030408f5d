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

package localcomm

import (
	"context"
	"fmt"

	"github.com/grailbio/bfs500/transport"
)

// Comm is one rank's view of a hub.
type Comm struct {
	rank int
	hub  *hub
}

var _ transport.Comm = (*Comm)(nil)

// New creates a fresh communicator of size n and returns each rank's view
// of it, indexed by rank.
func New(n int) []transport.Comm {
	h := newHub(n)
	out := make([]transport.Comm, n)
	for r := 0; r < n; r++ {
		out[r] = &Comm{rank: r, hub: h}
	}
	return out
}

// NewGrid builds the three communicators a grid.Context needs (spec §6):
// the full R*C world, and, per rank, the row and column sub-communicators.
// It returns three parallel slices indexed by world rank.
func NewGrid(r, c int) (world, rowC, colC []transport.Comm) {
	world = New(r * c)

	rowHubs := make([]*hub, r)
	for i := range rowHubs {
		rowHubs[i] = newHub(c)
	}
	colHubs := make([]*hub, c)
	for i := range colHubs {
		colHubs[i] = newHub(r)
	}

	rowC = make([]transport.Comm, r*c)
	colC = make([]transport.Comm, r*c)
	for rank := 0; rank < r*c; rank++ {
		row := rank / c
		col := rank % c
		rowC[rank] = &Comm{rank: col, hub: rowHubs[row]}
		colC[rank] = &Comm{rank: row, hub: colHubs[col]}
	}
	return world, rowC, colC
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.hub.n }

func (c *Comm) AllGather(_ context.Context, send []byte) ([][]byte, error) {
	res := c.hub.round(c.rank, send, func(all []interface{}) interface{} {
		out := make([][]byte, len(all))
		for i, v := range all {
			out[i], _ = v.([]byte)
		}
		return out
	})
	return res.([][]byte), nil
}

// AllGatherV has the same semantics as AllGather here: every contribution
// already carries its own length, so there is no separate fixed-size fast
// path to specialize.
func (c *Comm) AllGatherV(ctx context.Context, send []byte) ([][]byte, error) {
	return c.AllGather(ctx, send)
}

func (c *Comm) AllReduceSum(_ context.Context, v uint64) (uint64, error) {
	res := c.hub.round(c.rank, v, func(all []interface{}) interface{} {
		var sum uint64
		for _, x := range all {
			sum += x.(uint64)
		}
		return sum
	})
	return res.(uint64), nil
}

func (c *Comm) AllReduceMax(_ context.Context, v uint64) (uint64, error) {
	res := c.hub.round(c.rank, v, func(all []interface{}) interface{} {
		var max uint64
		for _, x := range all {
			if u := x.(uint64); u > max {
				max = u
			}
		}
		return max
	})
	return res.(uint64), nil
}

func (c *Comm) AllReduceLOR(_ context.Context, v bool) (bool, error) {
	res := c.hub.round(c.rank, v, func(all []interface{}) interface{} {
		any := false
		for _, x := range all {
			any = any || x.(bool)
		}
		return any
	})
	return res.(bool), nil
}

// ReduceScatter element-wise ORs every rank's i'th buffer together (the
// bitmap reduction bottom-up expand needs for shared_visited) and returns
// rank i's share of the result. All ranks must supply same-length buffers
// for a given index.
func (c *Comm) ReduceScatter(_ context.Context, send [][]byte) ([]byte, error) {
	res := c.hub.round(c.rank, send, func(all []interface{}) interface{} {
		n := len(all)
		out := make([][]byte, n)
		for i := 0; i < n; i++ {
			var acc []byte
			for _, v := range all {
				bufs := v.([][]byte)
				if i >= len(bufs) {
					continue
				}
				b := bufs[i]
				if acc == nil {
					acc = make([]byte, len(b))
				}
				for j := range b {
					acc[j] |= b[j]
				}
			}
			out[i] = acc
		}
		return out
	})
	return res.([][]byte)[c.rank], nil
}

func (c *Comm) Barrier(_ context.Context) error {
	c.hub.round(c.rank, nil, func([]interface{}) interface{} { return nil })
	return nil
}

func (c *Comm) Abort(code int) {
	panic(fmt.Sprintf("localcomm: Abort(code=%d) on rank %d", code, c.rank))
}
