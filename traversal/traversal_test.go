package traversal

import (
	"sync"
	"testing"

	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/wire"
	"github.com/stretchr/testify/assert"
)

func smallGraph(t *testing.T) *graph.Graph {
	b := graph.NewBuilder(4, 1, 1, false)
	b.AddEdge(0, 1)
	g, err := b.Build()
	assert.NoError(t, err)
	return g
}

func TestBitmapTestAndSetIsExclusive(t *testing.T) {
	bm := NewBitmap(64)
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bm.TestAndSet(7) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
	assert.True(t, bm.Test(7))
}

func TestBagProducerFlushesOnFill(t *testing.T) {
	bag := NewBag()
	p := NewProducer(bag)
	for i := 0; i < BucketUnitSize+5; i++ {
		p.Push(uint32(i))
	}
	assert.Equal(t, BucketUnitSize, bag.Len())
	p.Flush()
	assert.Equal(t, BucketUnitSize+5, bag.Len())

	chunks := bag.Drain()
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, BucketUnitSize+5, total)
	assert.Equal(t, 0, bag.Len())
}

func TestStateSetPredOnlyOnce(t *testing.T) {
	g := smallGraph(t)
	layout, err := wire.NewLayout(1, 1, 4)
	assert.NoError(t, err)
	s := New(g, layout)

	p := layout.Encode(0, 0, 0, 0)
	s.SetPred(1, p)
	assert.Equal(t, p, s.Pred[1])
	assert.Panics(t, func() { s.SetPred(1, p) })
}

func TestSwapVisitedClearsNew(t *testing.T) {
	g := smallGraph(t)
	layout, _ := wire.NewLayout(1, 1, 4)
	s := New(g, layout)
	s.VisitedNew.Set(3)
	s.SwapVisited()
	assert.True(t, s.VisitedOld.Test(3))
	assert.False(t, s.VisitedNew.Test(3))
}

func TestResetForRun(t *testing.T) {
	g := smallGraph(t)
	layout, _ := wire.NewLayout(1, 1, 4)
	s := New(g, layout)
	s.SetPred(0, layout.Encode(0, 0, 0, 0))
	s.VisitedNew.Set(1)
	p := NewProducer(s.NQTopDown)
	p.Push(1)
	p.Flush()
	assert.Equal(t, 1, s.NQTopDown.Len())

	s.ResetForRun()
	for _, p := range s.Pred {
		assert.Equal(t, wire.Unvisited, p)
	}
	assert.False(t, s.VisitedNew.Test(1))
}
