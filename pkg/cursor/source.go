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

package cursor

import (
	"context"
	"io"

	"github.com/logrange/rdb/api"
)

type (
	// Source interface provides the ordered, forward-only sequence of records
	// a cursor walks over. Implementations may produce the records lazily
	// (paging them from a server for instance), so Next could block.
	Source interface {
		// Next returns the next record of the sequence, or io.EOF when the
		// sequence is over. Any other error indicates a production failure.
		Next(ctx context.Context) (*api.Record, error)

		// Close abandons the production of the records and releases resources
		// held by the source. Implementations must not drain the remaining
		// records one by one for that. Close of an exhausted source is fine.
		Close() error
	}

	// RecordsSource is a Source over records that are in memory already. It
	// ignores ctx and never blocks, which makes it handy for tests and for
	// building cursors over complete results.
	RecordsSource struct {
		recs   []*api.Record
		pos    int
		closed bool
	}
)

// NewRecordsSource returns a Source which yields the provided records one by one
func NewRecordsSource(recs ...*api.Record) *RecordsSource {
	return &RecordsSource{recs: recs}
}

// Next is part of the Source interface
func (rs *RecordsSource) Next(ctx context.Context) (*api.Record, error) {
	if rs.closed || rs.pos >= len(rs.recs) {
		return nil, io.EOF
	}
	r := rs.recs[rs.pos]
	rs.pos++
	return r, nil
}

// Close is part of the Source interface
func (rs *RecordsSource) Close() error {
	rs.closed = true
	return nil
}
