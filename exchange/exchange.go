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
	"encoding/binary"
	"runtime"
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/bfs500/transport"
	"github.com/pkg/errors"
)

// digestLen is the trailing seahash checksum every on-the-wire buffer
// carries, a cheap corruption check in the same spirit as
// cmd/bio-pamtool/checksum.go's per-record digest, applied here per packet
// instead of per record.
const digestLen = 8

func appendDigest(buf []byte) []byte {
	h := seahash.New()
	_, _ = h.Write(buf)
	var sum [digestLen]byte
	binary.LittleEndian.PutUint64(sum[:], h.Sum64())
	return append(buf, sum[:]...)
}

func verifyDigest(buf []byte) ([]byte, error) {
	if len(buf) < digestLen {
		return nil, errors.Errorf("exchange: buffer too short for digest (%d bytes)", len(buf))
	}
	payload, got := buf[:len(buf)-digestLen], buf[len(buf)-digestLen:]
	h := seahash.New()
	_, _ = h.Write(payload)
	var want [digestLen]byte
	binary.LittleEndian.PutUint64(want[:], h.Sum64())
	for i := range want {
		if want[i] != got[i] {
			return nil, errors.New("exchange: packet digest mismatch, possible corruption")
		}
	}
	return payload, nil
}

// Exchange drives one handler's worth of asynchronous packet traffic for
// one level. A new Exchange is created per level per direction, mirroring
// spec §4.7's per-level handler lifecycle.
type Exchange struct {
	comm    transport.Comm
	handler Handler
	rank    int
	size    int

	packets []*localPacket // one per destination rank

	sendQueue chan queuedSend
	pool      *syncqueue.LIFO // pool of reusable []byte recv buffers

	err errorreporter.T

	wg       sync.WaitGroup
	sentSentinel  []bool
	sentinelMu    sync.Mutex
	recvDone      chan struct{}
}

type queuedSend struct {
	dst  int
	data []uint32
}

// New starts two background goroutines (a send loop and a receive loop)
// driving comm on behalf of handler and returns the Exchange. Call Send from any number of producer
// goroutines, then Finish once all producers are done for this level.
func New(comm transport.Comm, handler Handler) *Exchange {
	size := handler.CommSize()
	e := &Exchange{
		comm:         comm,
		handler:      handler,
		rank:         comm.Rank(),
		size:         size,
		packets:      make([]*localPacket, size),
		sendQueue:    make(chan queuedSend, size*handler.SendQueueLimit()+size),
		pool:         syncqueue.NewLIFO(),
		sentSentinel: make([]bool, size),
		recvDone:     make(chan struct{}),
	}
	for i := range e.packets {
		e.packets[i] = newLocalPacket(handler.BufferSize())
	}
	e.wg.Add(2)
	go e.sendLoop()
	go e.recvLoop()
	return e
}

// Send appends words to destination dst's buffer, transparently rotating
// and enqueueing the buffer for the background sender when it fills (spec
// §4.7's lock-free reservation loop).
func (e *Exchange) Send(dst int, words []uint32) {
	p := e.packets[dst]
	for len(words) > 0 {
		n := len(words)
		if n > p.cap {
			n = p.cap
		}
		off, ok := p.reserve(n)
		if !ok {
			e.flush(dst)
			continue
		}
		copy(p.buf[off:], words[:n])
		p.fill(n)
		words = words[n:]
	}
}

// flush rotates dst's buffer out and queues it for the background sender,
// spinning until any in-flight reservation finishes its copy first.
func (e *Exchange) flush(dst int) {
	p := e.packets[dst]
	p.mu.Lock()
	for !p.drained() {
		p.mu.Unlock()
		p.mu.Lock()
	}
	full, n := p.rotate()
	p.mu.Unlock()
	if n == 0 {
		return
	}
	buf := make([]uint32, n)
	copy(buf, full)
	e.sendQueue <- queuedSend{dst: dst, data: buf}
}

// FlushAll force-flushes every destination's partially filled buffer and
// sends the zero-length end-of-level sentinel to each, per spec §4.7's
// "completion sentinels".
func (e *Exchange) FlushAll() {
	for dst := 0; dst < e.size; dst++ {
		e.flush(dst)
		e.sendQueue <- queuedSend{dst: dst, data: nil}
	}
}

// Close waits for all queued sends to drain and for the receive goroutine
// to see every source's end-of-level sentinel, then returns the first
// error (if any) encountered by either goroutine. The handler's Finished
// method is not consulted.
func (e *Exchange) Close() error {
	close(e.sendQueue)
	e.wg.Wait()
	return e.err.Err()
}

func (e *Exchange) sendLoop() {
	defer e.wg.Done()
	for qs := range e.sendQueue {
		payload := uint32SliceToBytes(qs.data)
		payload = appendDigest(payload)
		req, err := e.comm.ISend(qs.dst, sendTag, payload)
		if err != nil {
			e.err.Set(errors.Wrap(err, "exchange: ISend"))
			continue
		}
		if err := e.comm.WaitAll([]transport.Request{req}); err != nil {
			e.err.Set(errors.Wrap(err, "exchange: WaitAll(send)"))
		}
		if len(qs.data) == 0 {
			e.sentinelMu.Lock()
			e.sentSentinel[qs.dst] = true
			e.sentinelMu.Unlock()
		}
	}
}

const sendTag = 0xb5500

// recvLoop posts one outstanding IRecv per source rank and uses TestAny to
// poll for whichever completes first, the same "post a pool buffer per
// peer, test-any, redecode, repost" shape spec §4.7 describes for the
// background thread. A source is retired once its zero-length sentinel
// arrives; the loop exits once every source has sent its sentinel.
func (e *Exchange) recvLoop() {
	defer e.wg.Done()

	reqs := make([]transport.Request, e.size)
	bufs := make([][]byte, e.size)
	done := make([]bool, e.size)
	remaining := e.size

	bufSize := e.handler.BufferSize()*4 + digestLen
	postRecv := func(src int) {
		var b []byte
		if v, ok := e.pool.Get(); ok {
			b = v.([]byte)
		} else {
			b = make([]byte, bufSize)
		}
		bufs[src] = b
		req, err := e.comm.IRecv(src, sendTag, bufs[src])
		if err != nil {
			e.err.Set(errors.Wrap(err, "exchange: IRecv"))
			return
		}
		reqs[src] = req
	}
	for src := 0; src < e.size; src++ {
		postRecv(src)
	}

	for remaining > 0 {
		active := make([]transport.Request, 0, e.size)
		activeSrc := make([]int, 0, e.size)
		for src, r := range reqs {
			if !done[src] && r != nil {
				active = append(active, r)
				activeSrc = append(activeSrc, src)
			}
		}
		if len(active) == 0 {
			break
		}
		idx, ok, err := e.comm.TestAny(active)
		if err != nil {
			e.err.Set(errors.Wrap(err, "exchange: TestAny"))
			return
		}
		if !ok {
			runtime.Gosched()
			continue
		}
		src := activeSrc[idx]
		n := e.comm.RecvLen(reqs[src])
		payload, verr := verifyDigest(bufs[src][:n])
		if verr != nil {
			e.err.Set(verr)
			return
		}
		if len(payload) == 0 {
			done[src] = true
			remaining--
			e.pool.Put(bufs[src])
			continue
		}
		if derr := e.handler.Deliver(src, bytesToUint32Slice(payload)); derr != nil {
			e.err.Set(errors.Wrap(derr, "exchange: Deliver"))
			return
		}
		e.pool.Put(bufs[src])
		postRecv(src)
	}
	close(e.recvDone)
}
