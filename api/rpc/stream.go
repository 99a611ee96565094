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

package rpc

import (
	"context"
	"io"

	"github.com/logrange/rdb/api"
)

type (
	// QueryStream pages the result of one query call by call and yields its
	// records one by one, so a result cursor can walk a server stream without
	// knowing about the paging underneath.
	//
	// The stream is stateful and must be used by one goroutine only, which is
	// the cursor contract as well.
	QueryStream struct {
		q       api.Querier
		keys    []string
		sum     *api.Summary
		recs    []*api.Record
		idx     int
		nextReq api.QueryRequest
		fin     bool
		closed  bool
	}
)

// OpenQueryStream sends the query to the server and holds its first page. The
// keys of the result are known once the function returns, and any immediate
// query failure (a parse error for instance) surfaces here, not on the first
// record read.
func OpenQueryStream(ctx context.Context, q api.Querier, req *api.QueryRequest) (*QueryStream, error) {
	qs := new(QueryStream)
	qs.q = q
	qs.sum = &api.Summary{Query: req.Query}

	var res api.QueryResult
	err := q.Query(ctx, req, &res)
	if err == nil && res.Err != nil {
		err = res.Err
	}
	if err != nil {
		return nil, err
	}

	qs.keys = res.Keys
	qs.absorb(&res)
	return qs, nil
}

// Keys returns the ordered field names of the result records
func (qs *QueryStream) Keys() []string {
	return qs.keys
}

// Summary returns the summary object of the stream. Its identity never
// changes, the value is populated when the stream delivers its last page or
// when the stream is closed before that and the server reports the final
// state in the release response.
func (qs *QueryStream) Summary() *api.Summary {
	return qs.sum
}

// Next returns the next record of the result, pulling the next page from the
// server when the current one is drained. It is part of the source contract
// the cursor relies on: io.EOF signals the regular end of the stream.
func (qs *QueryStream) Next(ctx context.Context) (*api.Record, error) {
	for {
		if qs.idx < len(qs.recs) {
			r := qs.recs[qs.idx]
			qs.idx++
			return r, nil
		}

		if qs.closed || qs.fin {
			return nil, io.EOF
		}

		var res api.QueryResult
		err := qs.q.Query(ctx, &qs.nextReq, &res)
		if err == nil && res.Err != nil {
			err = res.Err
		}
		if err != nil {
			return nil, err
		}

		qs.absorb(&res)
		if len(qs.recs) == 0 && !qs.fin {
			// the server must not produce an empty intermediate page, stop
			// paging instead of spinning if it ever does
			return nil, io.EOF
		}
	}
}

// Close abandons the paging. If the stream is not exhausted yet, the
// server-side state is released by one Release call and the summary is filled
// from its response. The records left in the current page are dropped, they
// are never walked through.
func (qs *QueryStream) Close() error {
	if qs.closed {
		return nil
	}
	qs.closed = true
	qs.recs = nil
	if qs.fin {
		return nil
	}

	var sum api.Summary
	err := qs.q.Release(context.Background(), qs.nextReq.ReqId, &sum)
	if err != nil {
		return err
	}
	if sum.Query == "" {
		sum.Query = qs.sum.Query
	}
	*qs.sum = sum
	return nil
}

func (qs *QueryStream) absorb(res *api.QueryResult) {
	qs.recs = res.Records
	qs.idx = 0
	qs.nextReq = res.NextQueryRequest
	if res.Summary != nil {
		*qs.sum = *res.Summary
		qs.fin = true
	}
}
