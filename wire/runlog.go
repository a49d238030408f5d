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

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

func float64bits(v float64) uint64    { return math.Float64bits(v) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// NumBFSRoots is the number of per-root timing slots a RunLogRecord holds
// (spec §6).
const NumBFSRoots = 64

// RunLogMagic identifies a bfs500 run-log file, the same role
// fieldio.FieldIndexMagic plays for PAM field files.
const RunLogMagic = uint64(0xb5500b5500b5500b)

// RootTiming is one completed root's measurements.
type RootTiming struct {
	BFSTime      float64
	ValidateTime float64
	EdgeCount    float64
}

// RunLogRecord is the fixed-layout persisted state described in spec §6.
type RunLogRecord struct {
	Scale              int32
	EdgeFactor         int32
	MPISize            int32
	NumRuns            int32
	GenerationTime     float64
	ConstructionTime   float64
	RedistributionTime float64
	Times              [NumBFSRoots]RootTiming
}

// recordSize is the exact encoded byte length of a RunLogRecord, including
// the 8-byte magic prefix.
const recordSize = 8 + 4*4 + 8*3 + NumBFSRoots*8*3

// Marshal encodes r in a fixed little-endian layout, magic-prefixed so a
// reader can cheaply reject a file written by something else.
func (r *RunLogRecord) Marshal() []byte {
	buf := make([]byte, recordSize)
	o := 0
	putU64 := func(v uint64) { binary.LittleEndian.PutUint64(buf[o:], v); o += 8 }
	putI32 := func(v int32) { binary.LittleEndian.PutUint32(buf[o:], uint32(v)); o += 4 }
	putF64 := func(v float64) { putU64(float64bits(v)) }

	putU64(RunLogMagic)
	putI32(r.Scale)
	putI32(r.EdgeFactor)
	putI32(r.MPISize)
	putI32(r.NumRuns)
	putF64(r.GenerationTime)
	putF64(r.ConstructionTime)
	putF64(r.RedistributionTime)
	for _, t := range r.Times {
		putF64(t.BFSTime)
		putF64(t.ValidateTime)
		putF64(t.EdgeCount)
	}
	return buf
}

// Unmarshal is the exact inverse of Marshal.
func (r *RunLogRecord) Unmarshal(buf []byte) error {
	if len(buf) != recordSize {
		return errors.Errorf("wire: run-log record has %d bytes, want %d", len(buf), recordSize)
	}
	o := 0
	getU64 := func() uint64 { v := binary.LittleEndian.Uint64(buf[o:]); o += 8; return v }
	getI32 := func() int32 { v := binary.LittleEndian.Uint32(buf[o:]); o += 4; return int32(v) }
	getF64 := func() float64 { return float64frombits(getU64()) }

	magic := getU64()
	if magic != RunLogMagic {
		return errors.Errorf("wire: bad run-log magic %#x, want %#x", magic, RunLogMagic)
	}
	r.Scale = getI32()
	r.EdgeFactor = getI32()
	r.MPISize = getI32()
	r.NumRuns = getI32()
	r.GenerationTime = getF64()
	r.ConstructionTime = getF64()
	r.RedistributionTime = getF64()
	for i := range r.Times {
		r.Times[i].BFSTime = getF64()
		r.Times[i].ValidateTime = getF64()
		r.Times[i].EdgeCount = getF64()
	}
	return nil
}

// WriteTo and ReadFrom let callers round-trip a record through any
// io.Writer/io.Reader (e.g. a gzip.Writer, or a github.com/grailbio/base/file
// handle) without depending on a particular storage backend here.
func (r *RunLogRecord) WriteTo(w io.Writer) (int64, error) {
	b := r.Marshal()
	n, err := w.Write(b)
	return int64(n), errors.Wrap(err, "wire: write run-log record")
}

func (r *RunLogRecord) ReadFrom(rd io.Reader) (int64, error) {
	b := make([]byte, recordSize)
	n, err := io.ReadFull(rd, b)
	if err != nil {
		return int64(n), errors.Wrap(err, "wire: read run-log record")
	}
	return int64(n), r.Unmarshal(b)
}
