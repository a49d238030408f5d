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

package graph

import (
	"reflect"
	"unsafe"
)

// hugeUint32Slice returns an n-element []uint32 backed by allocHugeBytes,
// using the same no-reallocation byte<->typed-slice cast idiom as
// encoding/pam/fieldio/unsafeint32.go.
func hugeUint32Slice(n int) []uint32 {
	if n == 0 {
		return nil
	}
	const elemSize = int(unsafe.Sizeof(uint32(0)))
	b := allocHugeBytes(n * elemSize)
	var out []uint32
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	dh := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	dh.Data = sh.Data
	dh.Len = n
	dh.Cap = n
	return out
}
