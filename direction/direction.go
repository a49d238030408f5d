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

// Package direction implements the per-level top-down/bottom-up switch
// policy (spec §4.5). It carries no global state: every BFS run owns one
// Controller value, the same way pileup/snp.Opts is a plain struct rather
// than a package-level mutable config.
package direction

// Mode is the search direction for one level.
type Mode int

const (
	TopDown Mode = iota
	BottomUp
)

func (m Mode) String() string {
	if m == TopDown {
		return "top-down"
	}
	return "bottom-up"
}

// Representation is the bottom-up current-queue encoding: a compact list
// while the frontier is small, a bitmap once it's large (spec §4.5 second
// predicate).
type Representation int

const (
	ListRepresentation Representation = iota
	BitmapRepresentation
)

// DefaultAlpha and DefaultBeta are calibrated, per spec §4.5, so the
// top-down->bottom-up switch fires at roughly global_nq > total/2000, and
// the bottom-up->top-down switch fires at roughly global_nq <
// remaining-unvisited/2.
const (
	DefaultAlpha = 2048
	DefaultBeta  = 2
)

// Controller decides the direction for the next level from the previous
// level's global next-queue size. Per spec §9 Open Question #3, Alpha/Beta
// are fixed at construction and not mutated mid-run.
type Controller struct {
	Alpha uint64
	Beta  uint64

	// EncoderCapacity bounds how large a list representation the expand
	// phase's encoder can hold before it must fall back to a bitmap, per
	// spec §4.5's "min(encoder_capacity, half_bitmap_width/2)".
	EncoderCapacity uint64

	mode             Mode
	globalVisited    uint64
	prevGlobalNQ     uint64
}

// NewController returns a Controller seeded with the defaults. BFS always
// begins top-down (the frontier is a single root vertex).
func NewController(encoderCapacity uint64) *Controller {
	return &Controller{
		Alpha:           DefaultAlpha,
		Beta:            DefaultBeta,
		EncoderCapacity: encoderCapacity,
		mode:            TopDown,
	}
}

// Mode returns the direction chosen for the current level.
func (c *Controller) Mode() Mode { return c.mode }

// Advance folds in the just-completed level's results and chooses the mode
// for the next level, implementing spec §4.5's three rules in order.
func (c *Controller) Advance(globalNQ, totalVertices uint64) {
	c.globalVisited += c.prevGlobalNQ
	c.prevGlobalNQ = globalNQ

	switch c.mode {
	case TopDown:
		if c.Alpha > 0 && globalNQ > totalVertices/c.Alpha {
			c.mode = BottomUp
		}
	case BottomUp:
		remaining := totalVertices - c.globalVisited
		if c.Beta > 0 && globalNQ < remaining/c.Beta {
			c.mode = TopDown
		}
	}
}

// ChooseRepresentation applies spec §4.5's second predicate: bitmap once
// the frontier is too large for the list encoder/half-bitmap-width budget.
func (c *Controller) ChooseRepresentation(maxNQSize uint64, halfBitmapWidth uint64) Representation {
	limit := c.EncoderCapacity
	if halfBitmapWidth/2 < limit {
		limit = halfBitmapWidth / 2
	}
	if maxNQSize > limit {
		return BitmapRepresentation
	}
	return ListRepresentation
}

// GlobalVisited returns the running tally of globally visited vertices as
// of the start of the current level (before this level's discoveries are
// folded in by the next Advance call).
func (c *Controller) GlobalVisited() uint64 { return c.globalVisited }
