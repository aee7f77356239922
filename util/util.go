// Copyright 2023 The Cuber Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package util

import (
	"errors"
	"net"
	"unsafe"

	"github.com/cubefs/cubefs/blobstore/util/bytespool"
)

// BytesToString reinterprets b as a string without copying. Used by the
// replica-map info surface, which only ever reads its Base64 buffer back
// out as a string and never mutates b afterward.
func BytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// GetLocalIp returns this host's first non-loopback IPv4 address, used
// by the demo binary to log what address it's reachable at.
func GetLocalIp() (string, error) {
	addresses, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addresses {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", errors.New("can not find the local ip address")
}

// GetBuffer and PutBuffer wrap the shared buffer pool indextree draws its
// per-tree allocations from.
func GetBuffer(size int) []byte {
	return bytespool.Alloc(size)
}

func PutBuffer(b []byte) {
	bytespool.Free(b)
}
