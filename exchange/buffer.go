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

// Package exchange implements the asynchronous, lock-free-on-the-hot-path
// all-to-all packet exchange of spec §4.7: producer goroutines fill
// per-destination buffers through an atomic fetch-add reservation, and two
// background goroutines per Exchange (one sending, one receiving) drive
// send/receive progress, the same
// division of labor encoding/pam/fieldio.Writer uses between its
// caller-facing Put* methods (lock-free append into the active buffer) and
// its recordio writer's own flush goroutine.
package exchange

import (
	"sync"
	"sync/atomic"
)

// bufState mirrors spec §4.7's comm-buffer state machine. Only the send
// side states are modeled explicitly; the recv side is driven directly by
// the progress loop in exchange.go.
type bufState int32

const (
	stateFree bufState = iota
	stateReserved
	stateFilled
	stateQueued
	stateInFlight
)

// localPacket is one destination's send-side staging buffer: producers
// reserve a slice of buf via an atomic fetch-add, copy their payload into
// the granted offset, then fetch-add filled to match. Rotation (FILLED ->
// QUEUED) requires mu because it swaps buf for a fresh one and must not
// race a producer that is still about to copy into the old buf.
type localPacket struct {
	mu  sync.Mutex
	buf []uint32

	reserved int64 // atomically incremented reservation high-water mark
	filled   int64 // atomically incremented count of completed copies

	cap int
}

func newLocalPacket(capacity int) *localPacket {
	return &localPacket{buf: make([]uint32, capacity), cap: capacity}
}

// reserve grants the caller a [offset, offset+n) window to write into, or
// reports that the buffer is full and must be rotated first.
func (p *localPacket) reserve(n int) (offset int, ok bool) {
	off := atomic.AddInt64(&p.reserved, int64(n)) - int64(n)
	if int(off)+n > p.cap {
		return 0, false
	}
	return int(off), true
}

// fill records that the caller finished copying into [offset, offset+n).
func (p *localPacket) fill(n int) {
	atomic.AddInt64(&p.filled, int64(n))
}

// rotate swaps in a fresh buffer and returns the full one along with how
// many words it holds, resetting the reservation/fill counters. Callers
// must hold p.mu; the hot-path reserve/fill above never takes it.
func (p *localPacket) rotate() (full []uint32, n int) {
	n = int(atomic.LoadInt64(&p.filled))
	full = p.buf[:n]
	p.buf = make([]uint32, p.cap)
	atomic.StoreInt64(&p.reserved, 0)
	atomic.StoreInt64(&p.filled, 0)
	return full, n
}

// drained reports whether every reserved word has also been filled, i.e.
// no producer is still mid-copy -- the condition rotate's caller spins on
// before swapping the buffer (spec §4.7: "spins until the previous fill
// completes").
func (p *localPacket) drained() bool {
	return atomic.LoadInt64(&p.filled) == atomic.LoadInt64(&p.reserved)
}
