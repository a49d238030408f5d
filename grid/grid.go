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

// Package grid encapsulates the 2D process grid and its communicators.
// It replaces the global mutable "mpi"-like singleton the original source
// used (spec §9 design note) with an explicit value passed to every
// constructor that needs it.
package grid

import (
	"github.com/grailbio/bfs500/transport"
	"github.com/pkg/errors"
)

// Context is the explicit grid state every BFS component needs: rank,
// coordinates, and the three communicators spec §6 requires (2D, row,
// column).
type Context struct {
	R, C int // grid dimensions; must both be powers of two
	Rank int // rank within World

	Row   int // this process's row coordinate
	Col   int // this process's column coordinate

	World transport.Comm // full R*C communicator
	RowC  transport.Comm // same-row sub-communicator, size C
	ColC  transport.Comm // same-column sub-communicator, size R
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// New validates R, C and world against the communicators actually supplied
// and derives Row/Col from world's rank. It is the grid-construction
// analogue of spec §7 kind-1 configuration errors: callers are expected to
// report the error on rank 0, broadcast it, then abort the full
// communicator (see transport.Comm.Abort).
func New(r, c int, world, rowC, colC transport.Comm) (*Context, error) {
	if !isPowerOfTwo(r) {
		return nil, errors.Errorf("grid: R=%d is not a power of two", r)
	}
	if !isPowerOfTwo(c) {
		return nil, errors.Errorf("grid: C=%d is not a power of two", c)
	}
	if world.Size() != r*c {
		return nil, errors.Errorf("grid: world size %d != R*C (%d*%d)", world.Size(), r, c)
	}
	if rowC.Size() != c {
		return nil, errors.Errorf("grid: row communicator size %d != C (%d)", rowC.Size(), c)
	}
	if colC.Size() != r {
		return nil, errors.Errorf("grid: column communicator size %d != R (%d)", colC.Size(), r)
	}
	rank := world.Rank()
	return &Context{
		R: r, C: c,
		Rank:  rank,
		Row:   rank / c,
		Col:   rank % c,
		World: world,
		RowC:  rowC,
		ColC:  colC,
	}, nil
}

// LgR and LgC report log2(R) and log2(C); callers use these to size the
// predecessor wire.Layout and to compute strides in the column-destination
// namespace.
func (g *Context) LgR() int { return log2(g.R) }
func (g *Context) LgC() int { return log2(g.C) }

func log2(n int) int {
	l := 0
	for (1 << uint(l)) < n {
		l++
	}
	return l
}
