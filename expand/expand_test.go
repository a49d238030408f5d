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

package expand

import (
	"context"
	"sync"
	"testing"

	"github.com/grailbio/bfs500/direction"
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/grid"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/transport/localcomm"
	"github.com/grailbio/bfs500/wire"
	"github.com/stretchr/testify/assert"
)

func smallGraphN(t *testing.T, lgl int) *graph.Graph {
	b := graph.NewBuilder(lgl, 1, 1, false)
	b.AddEdge(0, 1)
	g, err := b.Build()
	assert.NoError(t, err)
	return g
}

func TestTopDownExpandReplicatesAcrossColumn(t *testing.T) {
	// 2x1 grid (R=2, C=1): two ranks in the same column, each with its own NQ.
	world, rowC, colC := localcomm.NewGrid(2, 1)
	g0, err := grid.New(2, 1, world[0], rowC[0], colC[0])
	assert.NoError(t, err)
	g1, err := grid.New(2, 1, world[1], rowC[1], colC[1])
	assert.NoError(t, err)

	gr := smallGraphN(t, 4)
	s0 := traversal.New(gr, mustLayout(t))
	s1 := traversal.New(gr, mustLayout(t))

	p0 := traversal.NewProducer(s0.NQTopDown)
	p0.Push(7)
	p0.Flush()
	p1 := traversal.NewProducer(s1.NQTopDown)
	p1.Push(9)
	p1.Flush()

	var wg sync.WaitGroup
	wg.Add(2)
	var err0, err1 error
	go func() { defer wg.Done(); err0 = TopDown(context.Background(), g0, s0, 4) }()
	go func() { defer wg.Done(); err1 = TopDown(context.Background(), g1, s1, 4) }()
	wg.Wait()
	assert.NoError(t, err0)
	assert.NoError(t, err1)

	assert.ElementsMatch(t, s0.CQList, s1.CQList)
	assert.Len(t, s0.CQList, 2)
}

func TestBottomUpExpandListRepresentation(t *testing.T) {
	world, rowC, colC := localcomm.NewGrid(1, 2)
	g0, err := grid.New(1, 2, world[0], rowC[0], colC[0])
	assert.NoError(t, err)
	g1, err := grid.New(1, 2, world[1], rowC[1], colC[1])
	assert.NoError(t, err)

	gr := smallGraphN(t, 4)
	s0 := traversal.New(gr, mustLayout(t))
	s1 := traversal.New(gr, mustLayout(t))

	pp0 := traversal.NewPairProducer(s0.NQBottomUp)
	pp0.Push(traversal.Discovery{Local: 3})
	pp0.Flush()

	var wg sync.WaitGroup
	wg.Add(2)
	var err0, err1 error
	go func() {
		defer wg.Done()
		err0 = BottomUp(context.Background(), g0, s0, direction.ListRepresentation)
	}()
	go func() {
		defer wg.Done()
		err1 = BottomUp(context.Background(), g1, s1, direction.ListRepresentation)
	}()
	wg.Wait()
	assert.NoError(t, err0)
	assert.NoError(t, err1)

	assert.True(t, s0.SharedVisited.Test(3))
	assert.True(t, s1.SharedVisited.Test(3))
}

func mustLayout(t *testing.T) wire.Layout {
	l, err := wire.NewLayout(1, 1, 4)
	assert.NoError(t, err)
	return l
}
