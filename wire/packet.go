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

package wire

// TwodVertex is a (column, local-index) pair packed into a single 32-bit
// value: high bits carry the column, low bits the local index. It is used
// both as a destination-space id (top-down target) and a source-space id
// (bottom-up src/tgt pair).
type TwodVertex uint32

// PackTwodVertex combines a column and a local index given the number of
// local-index bits (lgl).
func PackTwodVertex(col uint32, local uint32, lgl uint) TwodVertex {
	return TwodVertex(col<<lgl | local)
}

// Column extracts the column bits of a TwodVertex given lgl.
func (v TwodVertex) Column(lgl uint) uint32 { return uint32(v) >> lgl }

// Local extracts the local-index bits of a TwodVertex given lgl.
func (v TwodVertex) Local(lgl uint) uint32 { return uint32(v) & (1<<lgl - 1) }

// HeaderWords splits a negated 64-bit source id into the two 32-bit words
// the top-down kernel writes as a packet header. For every src in
// [1, 2^32] (and any larger src whose negation leaves bit 63 set) the high
// word has its sign bit set, which is how receivers distinguish a header
// from a plain (non-negative) target word. src 0 negates to 0, so its
// header words carry no sign bit.
func HeaderWords(src uint64) (hi, lo uint32) {
	neg := -int64(src)
	return uint32(uint64(neg) >> 32), uint32(uint64(neg))
}

// IsHeaderWord reports whether w, interpreted as a two's-complement int32,
// is negative -- the sign-bit convention used to recognize packet headers
// in the top-down wire format.
func IsHeaderWord(w uint32) bool {
	return int32(w) < 0
}

// DecodeHeader is the inverse of HeaderWords.
func DecodeHeader(hi, lo uint32) uint64 {
	neg := int64(uint64(hi)<<32 | uint64(lo))
	return uint64(-neg)
}

// BottomUpPair is a single entry of a bottom-up packet: the source vertex
// in the destination's column coordinate space, and the destination-local
// id OR'd with the destination's column bits (SrcDst/TgtDst in spec §6).
type BottomUpPair struct {
	SrcDst TwodVertex
	TgtDst TwodVertex
}
