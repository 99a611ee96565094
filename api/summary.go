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

package api

import (
	"fmt"
	"time"
)

type (
	// Summary struct contains metadata of a query execution. The object is
	// created together with the result cursor, but its fields (except Query)
	// are populated when the record stream is fully read or released, so it
	// must not be consulted before that moment.
	Summary struct {
		// Query contains the original query text
		Query string

		// Records contains the number of records produced by the query
		Records uint64

		// Bytes contains the payload size of the produced records
		Bytes uint64

		// ExecTime contains the server-side execution time of the query
		ExecTime time.Duration

		// Pos contains the position of the stream after the last produced
		// record. It could be used for resuming the query later.
		Pos string
	}
)

func (s *Summary) String() string {
	return fmt.Sprintf("{Query: %q, Records: %d, Bytes: %d, ExecTime: %s, Pos: %s}",
		s.Query, s.Records, s.Bytes, s.ExecTime, s.Pos)
}
