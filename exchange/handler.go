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

// Handler parameterizes the exchange over the two concrete packet kinds
// spec §4.7 names: top-down (uint32 targets behind negated-source headers)
// and bottom-up ((src,dst) pairs). Deliver is called once per received,
// non-sentinel buffer from the background progress goroutine; it must not
// retain buf past the call.
type Handler interface {
	// CommSize is the number of ranks in this handler's sub-communicator
	// (the process column for top-down, the process row for bottom-up).
	CommSize() int

	// BufferSize is the fixed capacity, in uint32 words, of each
	// per-destination send buffer.
	BufferSize() int

	// SendQueueLimit is the back-pressure threshold (spec §4.7
	// SEND_BUFFER_LIMIT). Exchange uses it only to size its send queue
	// (CommSize*SendQueueLimit+CommSize entries, shared by all
	// destinations); a producer that finds the queue full blocks until the
	// send goroutine makes room. Producers do not drain receive work.
	SendQueueLimit() int

	// Deliver processes one received buffer from source rank `from`.
	Deliver(from int, buf []uint32) error

	// Finished is part of the handler surface but Exchange never calls
	// it: a level ends when the receive loop has seen every source's
	// zero-length sentinel. Both handlers in this package return false
	// unconditionally.
	Finished() bool
}
