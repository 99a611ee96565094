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
	"context"
	"fmt"
)

type (

	// QueryRequest struct describes a request for reading records
	QueryRequest struct {
		// ReqId identifies the server-side stream of the query. The field should
		// not be populated by client for a new query, but it is returned within
		// QueryResult.NextQueryRequest and must be sent back for reading the
		// next page of the same stream.
		ReqId uint64

		// Query contains the RQL line for selecting records
		Query string

		// Pos contains the position the stream should be read from. Empty value
		// means the beginning of the source.
		Pos string

		// Batch defines the maximum number of records returned per one call
		Batch int

		// Limit defines the maximum number of records which could be read by
		// the whole query. The value 0 or less means no limit.
		Limit int
	}

	// QueryResult is a result returned by the server in a response on RQL execution (see Querier.Query)
	QueryResult struct {
		// Keys contains the ordered field names of the result records. The
		// slice is the same for all pages of one stream.
		Keys []string

		// Records slice contains one page of the query result
		Records []*Record

		// NextQueryRequest contains the request for reading the next page of
		// the stream. It makes sense only if Err is nil and Summary is nil.
		NextQueryRequest QueryRequest

		// Summary is not nil on the last page only, when the stream is
		// exhausted and the server has dropped its state.
		Summary *Summary

		// Err the operation error. If the Err is nil, the operation successfully executed
		Err error `json:"-"`
	}

	// Querier - executes queries against an rdb database
	Querier interface {
		// Query runs RQL to collect the server data and return one page of it in
		// the QueryResult. It returns an error which indicates that the query
		// could not be delivered to the server, or it did not happen.
		Query(ctx context.Context, req *QueryRequest, res *QueryResult) error

		// Release abandons the server-side stream identified by reqId and fills
		// res by the final summary of the stream. Releasing an unknown or
		// already completed stream is not an error.
		Release(ctx context.Context, reqId uint64, res *Summary) error
	}
)

func (qr *QueryRequest) String() string {
	return fmt.Sprintf("{ReqId: %d, Query: %q, Pos: %s, Batch: %d, Limit: %d}", qr.ReqId, qr.Query, qr.Pos, qr.Batch, qr.Limit)
}

func (qres *QueryResult) String() string {
	return fmt.Sprintf("{Keys: %v, Records: %d, NextQueryReq: %s, Summary: %v, Err: %v}",
		qres.Keys, len(qres.Records), qres.NextQueryRequest.String(), qres.Summary, qres.Err)
}
