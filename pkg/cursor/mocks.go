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
	"fmt"

	"github.com/logrange/rdb/api"
)

// test helpers

var testKeys = []string{"a", "b"}

// testRecords builds n records {a: int64(i), b: "v<i>"}
func testRecords(n int) []*api.Record {
	res := make([]*api.Record, n)
	for i := 0; i < n; i++ {
		r, err := api.NewRecord(testKeys, []interface{}{int64(i), fmt.Sprintf("v%d", i)})
		if err != nil {
			panic(err)
		}
		res[i] = r
	}
	return res
}

// closeTracker wraps a Source counting Close() calls
type closeTracker struct {
	src    Source
	closes int
}

func (ct *closeTracker) Next(ctx context.Context) (*api.Record, error) {
	return ct.src.Next(ctx)
}

func (ct *closeTracker) Close() error {
	ct.closes++
	return ct.src.Close()
}

// errSource yields the given records and then keeps failing with the err provided
type errSource struct {
	recs []*api.Record
	err  error
	pos  int
}

func (es *errSource) Next(ctx context.Context) (*api.Record, error) {
	if es.pos >= len(es.recs) {
		return nil, es.err
	}
	r := es.recs[es.pos]
	es.pos++
	return r, nil
}

func (es *errSource) Close() error {
	return nil
}

// testCursor creates a cursor over n test records together with the tracker
// of its source
func testCursor(n int) (*Cursor, *closeTracker) {
	ct := &closeTracker{src: NewRecordsSource(testRecords(n)...)}
	return New(testKeys, ct, &api.Summary{Query: "select a, b from test"}), ct
}
