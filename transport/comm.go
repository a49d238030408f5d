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

// Package transport defines the collective/point-to-point interface the
// BFS engine needs (spec §6). It is the seam named in the purpose/scope
// section: real RDMA or MPI transports are alternative implementations of
// Comm and are out of scope here; transport/localcomm is the in-repo,
// channel-based implementation used to run and test a full multi-rank BFS
// within a single OS process.
package transport

import (
	"context"
	"errors"
)

// ErrUnexpectedCompletion is returned when a completion reports a state the
// handler did not expect (spec §7 kind 3: transport error, fatal).
var ErrUnexpectedCompletion = errors.New("transport: unexpected completion state")

// Request is an opaque handle to an outstanding non-blocking operation.
type Request interface {
	// Done reports whether the request has completed without blocking.
	Done() bool
}

// Comm is the minimal collective + point-to-point surface spec §6 requires:
// all-gather, all-gather-v, all-reduce (SUM/MAX/LOR), reduce-scatter,
// barrier, and non-blocking isend/irecv/test-any/wait-all.
type Comm interface {
	Rank() int
	Size() int

	AllGather(ctx context.Context, send []byte) ([][]byte, error)
	AllGatherV(ctx context.Context, send []byte) ([][]byte, error)
	AllReduceSum(ctx context.Context, v uint64) (uint64, error)
	AllReduceMax(ctx context.Context, v uint64) (uint64, error)
	AllReduceLOR(ctx context.Context, v bool) (bool, error)
	ReduceScatter(ctx context.Context, send [][]byte) ([]byte, error)
	Barrier(ctx context.Context) error

	ISend(dst int, tag int, buf []byte) (Request, error)
	IRecv(src int, tag int, buf []byte) (Request, error)
	// TestAny returns the index of a completed request, if any, along with
	// its actual received byte length via RecvLen (valid only for recv
	// requests). It never blocks.
	TestAny(reqs []Request) (idx int, ok bool, err error)
	WaitAll(reqs []Request) error

	// RecvLen returns the number of bytes actually written into an IRecv
	// buffer by a completed request (spec §4.7: "decodes the status to
	// recover the true byte length").
	RecvLen(req Request) int

	// Abort terminates every process in the communicator with the given
	// code (spec §7: "calls the MPI abort primitive on the full
	// communicator"). It never returns.
	Abort(code int)
}
