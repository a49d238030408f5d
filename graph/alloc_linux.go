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

// +build linux

package graph

import (
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// allocHugeBytes returns an anonymous-mmap'd, MADV_HUGEPAGE-hinted byte
// slice of the given size, falling back to a plain make([]byte, n) if the
// mmap fails. This is the same allocation strategy as
// fusion/kmer_index.go's kmer hash table: Linux only activates transparent
// huge pages for madvised regions by default, and the edge_array/row_bitmap
// backing store is exactly the kind of large, long-lived, random-access
// array that benefits from fewer TLB misses during the bottom-up scan.
func allocHugeBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		log.Printf("graph: huge-page mmap(%d) failed, falling back to heap: %v", n, err)
		return make([]byte, n)
	}
	if err := unix.Madvise(b, unix.MADV_HUGEPAGE); err != nil {
		log.Printf("graph: madvise(MADV_HUGEPAGE) failed, continuing without it: %v", err)
	}
	return b
}
