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
	"fmt"
	"io"

	"github.com/jrivets/log4g"
	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/records"
	"github.com/logrange/range/pkg/utils/bytes"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/pkg/store"
)

const (
	// cMaxBatchSize limits the number of records served in one result page
	cMaxBatchSize = 10000

	// cDefBatchSize is the page size used when a request doesn't set one
	cDefBatchSize = 1000
)

type (
	// ServerQuerier implements the server side of the query and release
	// endpoints. Every query call serves exactly one page of the stream
	// identified by ReqId, creating the stream if it is not known yet.
	ServerQuerier struct {
		Streams *store.Streams  `inject:""`
		MainCtx context.Context `inject:"mainCtx"`
		Pool    *bytes.Pool     `inject:""`

		logger log4g.Logger
	}

	clntQuerier struct {
		rc rrpc.Client
	}
)

func (cq *clntQuerier) Query(ctx context.Context, req *api.QueryRequest, res *api.QueryResult) error {
	resp, opErr, err := cq.rc.Call(ctx, cRpcEpQuerierQuery, (*writableQueryRequest)(req))
	if err != nil {
		return err
	}

	if res != nil {
		if opErr == nil {
			_, err = unmarshalQueryResult(resp, res, true)
		}
		res.Err = opErr
	}
	cq.rc.Collect(resp)

	return err
}

func (cq *clntQuerier) Release(ctx context.Context, reqId uint64, res *api.Summary) error {
	resp, opErr, err := cq.rc.Call(ctx, cRpcEpQuerierRelease, &releaseRequest{reqId: reqId})
	if err != nil {
		return err
	}

	if opErr == nil && res != nil {
		_, err = unmarshalSummary(resp, res, true)
	}
	cq.rc.Collect(resp)

	if opErr != nil {
		return opErr
	}
	return err
}

// NewServerQuerier creates the new ServerQuerier. Its fields are injected
// when the server is assembled.
func NewServerQuerier() *ServerQuerier {
	sq := new(ServerQuerier)
	sq.logger = log4g.GetLogger("rpc.querier")
	return sq
}

// query is the server version of api.Querier.Query(). It checks the stream
// out of the registry, serves one page and returns the stream back, unless
// the page was the last one. The last page carries the summary, which means
// the server has dropped the stream state already and no release is expected.
func (sq *ServerQuerier) query(reqId int32, reqBody []byte, sc *rrpc.ServerConn) {
	var rq api.QueryRequest
	_, err := unmarshalQueryRequest(reqBody, &rq, false)
	if err != nil {
		sq.logger.Warn("query(): received a request with unmarshalable body err=", err)
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}

	if rq.Limit < 0 {
		sc.SendResponse(reqId, fmt.Errorf("limit is negative"), cEmptyResponse)
		return
	}

	batch := rq.Batch
	if batch <= 0 {
		batch = cDefBatchSize
	}
	if batch > cMaxBatchSize {
		batch = cMaxBatchSize
	}

	state := store.State{Id: rq.ReqId, Query: rq.Query, Pos: rq.Pos, Limit: rq.Limit}
	strm, err := sq.Streams.GetOrCreate(sq.MainCtx, state)
	if err != nil {
		sq.logger.Warn("query(): could not get/create a stream, err=", err, " state=", state)
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}

	var qrb queryResultBuilder
	err = qrb.init(sq.Pool, strm.Keys())

	var rec *api.Record
	for err == nil && batch > 0 && strm.Left() != 0 {
		rec, err = strm.Get(sq.MainCtx)
		if err != nil {
			break
		}

		before := len(qrb.buf())
		err = qrb.writeRecord(rec)
		if err != nil {
			break
		}
		strm.Served(1, uint64(len(qrb.buf())-before))
		batch--
		strm.Next(sq.MainCtx)
	}

	if err != nil && err != io.EOF {
		sq.Streams.Complete(strm)
		sq.logger.Warn("query(): could not serve the page err=", err, " stream=", strm)
		sc.SendResponse(reqId, err, cEmptyResponse)
		qrb.Close()
		return
	}

	if err == io.EOF || strm.Left() == 0 {
		// the stream is over, send the summary within the last page
		sum := sq.Streams.Complete(strm)
		err = qrb.closeResult(&api.QueryRequest{Query: rq.Query, Pos: sum.Pos, Batch: rq.Batch}, sum)
	} else {
		st := sq.Streams.Release(strm)
		nextReq := api.QueryRequest{ReqId: st.Id, Query: st.Query, Pos: st.Pos, Batch: rq.Batch, Limit: st.Limit}
		err = qrb.closeResult(&nextReq, nil)
	}

	if err == nil {
		sc.SendResponse(reqId, nil, records.Record(qrb.buf()))
	} else {
		sc.SendResponse(reqId, err, cEmptyResponse)
	}
	qrb.Close()
}

// release is the server version of api.Querier.Release(). Dropping an unknown
// stream is fine, the response is a zero summary then.
func (sq *ServerQuerier) release(reqId int32, reqBody []byte, sc *rrpc.ServerConn) {
	var rr releaseRequest
	_, err := unmarshalReleaseRequest(reqBody, &rr)
	if err != nil {
		sq.logger.Warn("release(): received a request with unmarshalable body err=", err)
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}

	sum, ok := sq.Streams.Drop(rr.reqId)
	if !ok {
		sq.logger.Debug("release(): unknown stream id=", rr.reqId)
		sum = new(api.Summary)
	}
	sc.SendResponse(reqId, nil, (*writableSummary)(sum))
}
