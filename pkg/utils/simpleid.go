// Copyright 2019-2020 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"sync/atomic"
	"time"

	"github.com/logrange/range/pkg/cluster"
)

var lastSid uint64

func init() {
	lastSid = (uint64(time.Now().UnixNano()) & 0xFFFFFFFFFFFF0000) | uint64(cluster.HostId16&0xFFFF)
}

// NextSimpleId returns a pseudo-unique 64 bit identifier. The lower 16 bits
// carry the host id, the rest grows monotonically from the process start
// time, so identifiers don't collide between processes as long as the host
// ids differ.
func NextSimpleId() uint64 {
	return atomic.AddUint64(&lastSid, 0x10000)
}
