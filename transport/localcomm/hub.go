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

// Package localcomm is an in-process, goroutine-per-rank implementation of
// transport.Comm. It plays the role of a unit-testable MPI: every rank runs
// as a goroutine in the same address space, collectives are generation-
// counted rendezvous barriers, and point-to-point messages flow over
// per-(src,dst,tag) channels. Real transports (MPI, vendor RDMA) satisfy
// the same transport.Comm interface and are out of scope here (spec §1).
package localcomm

import (
	"sync"
)

// hub is the shared rendezvous point for one communicator's collectives and
// mailboxes. Every rank in the communicator holds a pointer to the same hub.
type hub struct {
	n int

	mu      sync.Mutex
	cond    *sync.Cond
	epoch   int
	arrived int
	contrib []interface{}
	result  interface{}

	mailMu sync.Mutex
	mail   map[mailKey]chan message
}

type mailKey struct {
	src, dst, tag int
}

type message struct {
	data []byte
}

func newHub(n int) *hub {
	h := &hub{
		n:       n,
		contrib: make([]interface{}, n),
		mail:    make(map[mailKey]chan message),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// round is a generation-counted barrier: the last rank to arrive computes
// combine over every rank's contribution and wakes everyone else up. All
// ranks see the same result. Callers on a given hub must invoke exactly one
// round per logical step, in the same relative order -- true by
// construction for the BFS per-level loop, which drives every rank through
// the same sequence of collectives.
func (h *hub) round(rank int, v interface{}, combine func([]interface{}) interface{}) interface{} {
	h.mu.Lock()
	myEpoch := h.epoch
	h.contrib[rank] = v
	h.arrived++
	if h.arrived == h.n {
		h.result = combine(h.contrib)
		h.arrived = 0
		h.contrib = make([]interface{}, h.n)
		h.epoch++
		h.cond.Broadcast()
	} else {
		for h.epoch == myEpoch {
			h.cond.Wait()
		}
	}
	res := h.result
	h.mu.Unlock()
	return res
}

// channel returns the (lazily created) mailbox for messages flowing from
// src to dst tagged tag.
func (h *hub) channel(src, dst, tag int) chan message {
	k := mailKey{src, dst, tag}
	h.mailMu.Lock()
	defer h.mailMu.Unlock()
	ch, ok := h.mail[k]
	if !ok {
		ch = make(chan message, 64)
		h.mail[k] = ch
	}
	return ch
}
