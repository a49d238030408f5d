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
	"github.com/grailbio/bfs500/traversal"
	"github.com/grailbio/bfs500/wire"
	"github.com/pkg/errors"
)

// TopDownLength is the default per-destination send buffer capacity, in
// uint32 words, for the top-down handler.
const TopDownLength = 4096

// TopDownHandler decodes the negated-source-header stream spec §4.3
// describes: a negative word begins a new (hi,lo) header reconstructing
// the sender's 64-bit predecessor; subsequent non-negative words are
// local target ids claimed under that predecessor, until the next header
// or end of buffer.
type TopDownHandler struct {
	commSize  int
	bufSize   int
	queueLim  int
	state     *traversal.State
	producers []*traversal.Producer // one per delivering goroutine; index 0 is safe for single-threaded Deliver
}

// NewTopDownHandler returns a handler delivering into state, producing
// next-queue entries through producer (Deliver runs on a single
// background goroutine, so one Producer suffices).
func NewTopDownHandler(commSize int, state *traversal.State, producer *traversal.Producer) *TopDownHandler {
	return &TopDownHandler{
		commSize:  commSize,
		bufSize:   TopDownLength,
		queueLim:  SendBufferLimit,
		state:     state,
		producers: []*traversal.Producer{producer},
	}
}

// SendBufferLimit is spec §4.7's SEND_BUFFER_LIMIT back-pressure threshold,
// grounded on the original source's mpi/parameters.h constant of the same
// name.
const SendBufferLimit = 6

func (h *TopDownHandler) CommSize() int       { return h.commSize }
func (h *TopDownHandler) BufferSize() int     { return h.bufSize }
func (h *TopDownHandler) SendQueueLimit() int { return h.queueLim }
func (h *TopDownHandler) Finished() bool      { return false }

// Deliver decodes one received top-down buffer and updates state.
func (h *TopDownHandler) Deliver(from int, words []uint32) error {
	p := h.producers[0]
	var havePred bool
	var pred wire.PredWord
	i := 0
	for i < len(words) {
		w := words[i]
		if wire.IsHeaderWord(w) {
			if i+1 >= len(words) {
				return errors.Errorf("exchange: truncated top-down header from rank %d", from)
			}
			pred = wire.PredWord(wire.DecodeHeader(w, words[i+1]))
			havePred = true
			i += 2
			continue
		}
		if !havePred {
			return errors.Errorf("exchange: top-down target with no preceding header from rank %d", from)
		}
		tgtLocal := w
		if h.state.SharedVisited.TestAndSet(int(tgtLocal)) {
			h.state.SetPred(tgtLocal, pred)
			p.Push(tgtLocal)
		}
		i++
	}
	return nil
}
