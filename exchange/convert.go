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
	"reflect"
	"unsafe"
)

// uint32SliceToBytes reinterprets a []uint32 as its little-endian-native
// []byte backing store with no copy, the same cast idiom
// encoding/pam/fieldio/unsafeint32.go uses the other direction.
func uint32SliceToBytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	var out []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&s))
	dh := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	dh.Data = sh.Data
	dh.Len = sh.Len * 4
	dh.Cap = sh.Cap * 4
	return out
}

// bytesToUint32Slice is the inverse of uint32SliceToBytes. buf's length
// must be a multiple of 4.
func bytesToUint32Slice(buf []byte) []uint32 {
	if len(buf) == 0 {
		return nil
	}
	var out []uint32
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	dh := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	dh.Data = sh.Data
	dh.Len = sh.Len / 4
	dh.Cap = sh.Cap / 4
	return out
}
