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

// BottomUpLength is the default per-destination send buffer capacity, in
// uint32 words (each pair is 2 words), for the bottom-up handler.
const BottomUpLength = 4096

// BottomUpHandler decodes a stream of wire.BottomUpPair entries routed to
// the destination vertex's owner column, so pred[] updates stay local
// (spec §4.4: "Predecessors discovered in bottom-up are written via the
// same packet mechanism, routed to the destination vertex's owner
// column").
type BottomUpHandler struct {
	commSize int
	bufSize  int
	queueLim int
	lgl      uint
	layout   wire.Layout
	level    int
	state    *traversal.State
}

// NewBottomUpHandler returns a handler delivering into state for the given
// level, using layout/lgl to decode the packed TwodVertex ids.
func NewBottomUpHandler(commSize int, state *traversal.State, layout wire.Layout, lgl uint, level int) *BottomUpHandler {
	return &BottomUpHandler{
		commSize: commSize,
		bufSize:  BottomUpLength,
		queueLim: SendBufferLimit,
		lgl:      lgl,
		layout:   layout,
		level:    level,
		state:    state,
	}
}

func (h *BottomUpHandler) CommSize() int       { return h.commSize }
func (h *BottomUpHandler) BufferSize() int     { return h.bufSize }
func (h *BottomUpHandler) SendQueueLimit() int { return h.queueLim }
func (h *BottomUpHandler) Finished() bool      { return false }

// Deliver decodes one received bottom-up buffer and updates state.
func (h *BottomUpHandler) Deliver(from int, words []uint32) error {
	if len(words)%2 != 0 {
		return errors.Errorf("exchange: odd-length bottom-up buffer from rank %d", from)
	}
	for i := 0; i+1 < len(words); i += 2 {
		pair := wire.BottomUpPair{
			SrcDst: wire.TwodVertex(words[i]),
			TgtDst: wire.TwodVertex(words[i+1]),
		}
		tgtLocal := pair.TgtDst.Local(h.lgl)
		srcCol := pair.SrcDst.Column(h.lgl)
		srcLocal := pair.SrcDst.Local(h.lgl)
		if h.state.VisitedNew.TestAndSet(int(tgtLocal)) {
			pred := h.layout.Encode(h.level, srcCol, uint32(from), srcLocal)
			h.state.SetPred(tgtLocal, pred)
		}
	}
	return nil
}
