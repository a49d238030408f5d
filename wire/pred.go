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

// Package wire defines the on-wire and in-memory packed representations
// shared by the BFS engine: the 64-bit predecessor word and the top-down /
// bottom-up packet header conventions. These are not generated from a
// schema (contrast with github.com/grailbio/bio/biopb); they are a small,
// fixed, hand-written layout in the same spirit as
// encoding/pam/fieldio's unsafe fixed-width field helpers.
package wire

import "fmt"

// PredWord is a packed predecessor entry: [level:16 | dstCol:lgC | srcRow:lgR | local:lgl].
// -1 (all bits set) means "unvisited".
type PredWord uint64

// Unvisited is the sentinel value of an empty predecessor slot.
const Unvisited = PredWord(^uint64(0))

// Pred describes the decoded fields of a PredWord.
type Pred struct {
	Level int
	Col   uint32
	Row   uint32
	Local uint32
}

// Layout holds the bit widths needed to encode/decode PredWord values for a
// given grid shape. lgC and lgR are log2(C) and log2(R); lgl is log2(Nloc).
type Layout struct {
	LgC int
	LgR int
	LgL int
}

// NewLayout validates the component widths and returns a Layout usable for
// Encode/Decode. It returns an error rather than panicking so callers at
// grid-construction time can report a configuration mismatch (spec §7
// kind 1) instead of crashing.
func NewLayout(lgC, lgR, lgl int) (Layout, error) {
	if lgC < 0 || lgR < 0 || lgl < 0 {
		return Layout{}, fmt.Errorf("wire: negative bit width (lgC=%d lgR=%d lgl=%d)", lgC, lgR, lgl)
	}
	if lgC+lgR+lgl+16 > 64 {
		return Layout{}, fmt.Errorf("wire: layout overflows 64 bits (lgC=%d lgR=%d lgl=%d)", lgC, lgR, lgl)
	}
	return Layout{LgC: lgC, LgR: lgR, LgL: lgl}, nil
}

// Encode packs (level, col, row, local) into a single 64-bit predecessor
// word: level occupies the high 16 bits, followed by col, row, and local in
// descending bit order.
func (l Layout) Encode(level int, col, row, local uint32) PredWord {
	w := uint64(uint16(level)) << 48
	w |= uint64(col) << uint(l.LgR+l.LgL)
	w |= uint64(row) << uint(l.LgL)
	w |= uint64(local)
	return PredWord(w)
}

// Decode is the exact inverse of Encode.
func (l Layout) Decode(w PredWord) Pred {
	u := uint64(w)
	localMask := uint64(1)<<uint(l.LgL) - 1
	rowMask := uint64(1)<<uint(l.LgR) - 1
	colMask := uint64(1)<<uint(l.LgC) - 1
	return Pred{
		Level: int(int16(u >> 48)),
		Col:   uint32((u >> uint(l.LgR+l.LgL)) & colMask),
		Row:   uint32((u >> uint(l.LgL)) & rowMask),
		Local: uint32(u & localMask),
	}
}
