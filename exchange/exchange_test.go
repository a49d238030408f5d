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

package exchange

import (
	"sync"
	"testing"

	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/transport/localcomm"
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"github.com/stretchr/testify/assert"
)

func twoVertexGraph(t *testing.T) *graph.Graph {
	b := graph.NewBuilder(4, 1, 1, false)
	b.AddEdge(0, 1)
	g, err := b.Build()
	assert.NoError(t, err)
	return g
}

// TestTopDownExchangeRoundTrip drives two ranks' Exchanges concurrently:
// rank 0 sends a header+target packet to rank 1, which must decode it into
// its own traversal.State next-queue with the correct predecessor.
func TestTopDownExchangeRoundTrip(t *testing.T) {
	comms := localcomm.New(2)
	layout, err := wire.NewLayout(1, 1, 4)
	assert.NoError(t, err)

	g1 := twoVertexGraph(t)
	s1 := traversal.New(g1, layout)
	producer := traversal.NewProducer(s1.NQTopDown)
	h1 := NewTopDownHandler(2, s1, producer)
	ex1 := New(comms[1], h1)

	g0 := twoVertexGraph(t)
	s0 := traversal.New(g0, layout)
	h0 := NewTopDownHandler(2, s0, traversal.NewProducer(s0.NQTopDown))
	ex0 := New(comms[0], h0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pred := layout.Encode(1, 0, 0, 3)
		hi, lo := wire.HeaderWords(uint64(pred))
		ex0.Send(1, []uint32{hi, lo, 5})
		ex0.FlushAll()
		assert.NoError(t, ex0.Close())
	}()

	// Rank 1 has no data to send this level, only sentinels.
	ex1.FlushAll()
	assert.NoError(t, ex1.Close())
	wg.Wait()

	producer.Flush()
	chunks := s1.NQTopDown.Drain()
	var got []uint32
	for _, c := range chunks {
		got = append(got, c...)
	}
	assert.Equal(t, []uint32{5}, got)
	assert.Equal(t, layout.Encode(1, 0, 0, 3), s1.Pred[5])
}

func TestDigestDetectsCorruption(t *testing.T) {
	buf := appendDigest([]byte{1, 2, 3, 4})
	_, err := verifyDigest(buf)
	assert.NoError(t, err)

	buf[0] ^= 0xff
	_, err = verifyDigest(buf)
	assert.Error(t, err)
}

func TestUint32ByteConversionRoundTrip(t *testing.T) {
	words := []uint32{1, 2, 3, 0xdeadbeef}
	b := uint32SliceToBytes(words)
	back := bytesToUint32Slice(b)
	assert.Equal(t, words, back)
}
