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

package traversal

import (
	"sync"

	"github.com/grailbio/bfs500/wire"
)

// BucketUnitSize is the fixed chunk size spec §4.2 names for next_queue
// entries: worker goroutines accumulate discoveries locally and only take
// the shared-bag lock once per full chunk.
const BucketUnitSize = 1024

// Bag is the multi-producer/single-consumer next-queue used by the
// top-down kernel: chunks of newly discovered local vertex ids. It is the
// Go realization of spec §4.2's "bag of fixed-size chunks"; the teacher has
// no direct analogue, so the shape here is the natural generalization of a
// mutex-guarded append-only chunk list.
type Bag struct {
	mu     sync.Mutex
	chunks [][]uint32
	n      int
}

// NewBag returns an empty Bag.
func NewBag() *Bag { return &Bag{} }

// push appends a full chunk. Called by Producer.Flush, never directly.
func (q *Bag) push(chunk []uint32) {
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.n += len(chunk)
	q.mu.Unlock()
}

// Drain removes and returns every chunk accumulated so far, resetting the
// bag for the next level. Single-consumer, called at the level boundary by
// the expand phase.
func (q *Bag) Drain() [][]uint32 {
	q.mu.Lock()
	chunks := q.chunks
	q.chunks = nil
	q.n = 0
	q.mu.Unlock()
	return chunks
}

// Len reports the total number of queued entries across all chunks.
func (q *Bag) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Producer is a worker goroutine's thread-local staging buffer for a Bag:
// it only touches the shared Bag's mutex once per BucketUnitSize entries.
type Producer struct {
	bag *Bag
	buf []uint32
}

// NewProducer returns a Producer flushing into bag.
func NewProducer(bag *Bag) *Producer {
	return &Producer{bag: bag, buf: make([]uint32, 0, BucketUnitSize)}
}

// Push appends a locally discovered vertex id, flushing to the shared bag
// when the local buffer fills.
func (p *Producer) Push(local uint32) {
	p.buf = append(p.buf, local)
	if len(p.buf) == cap(p.buf) {
		p.Flush()
	}
}

// Flush force-pushes any partially filled buffer, per spec §4.3's
// end-of-level "each row's packet is force-flushed" rule generalized to the
// next-queue bag.
func (p *Producer) Flush() {
	if len(p.buf) == 0 {
		return
	}
	p.bag.push(p.buf)
	p.buf = make([]uint32, 0, BucketUnitSize)
}

// Discovery is one bottom-up next-queue entry: the encoded predecessor and
// the local target vertex it points to (spec §4.2: "In bottom-up mode each
// entry is a (pred, tgt) pair").
type Discovery struct {
	Pred  wire.PredWord
	Local uint32
}

// PairBag is the bottom-up analogue of Bag.
type PairBag struct {
	mu     sync.Mutex
	chunks [][]Discovery
	n      int
}

func NewPairBag() *PairBag { return &PairBag{} }

func (q *PairBag) push(chunk []Discovery) {
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.n += len(chunk)
	q.mu.Unlock()
}

func (q *PairBag) Drain() [][]Discovery {
	q.mu.Lock()
	chunks := q.chunks
	q.chunks = nil
	q.n = 0
	q.mu.Unlock()
	return chunks
}

func (q *PairBag) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// PairProducer is the bottom-up thread-local staging buffer.
type PairProducer struct {
	bag *PairBag
	buf []Discovery
}

func NewPairProducer(bag *PairBag) *PairProducer {
	return &PairProducer{bag: bag, buf: make([]Discovery, 0, BucketUnitSize)}
}

func (p *PairProducer) Push(d Discovery) {
	p.buf = append(p.buf, d)
	if len(p.buf) == cap(p.buf) {
		p.Flush()
	}
}

func (p *PairProducer) Flush() {
	if len(p.buf) == 0 {
		return
	}
	p.bag.push(p.buf)
	p.buf = make([]Discovery, 0, BucketUnitSize)
}
