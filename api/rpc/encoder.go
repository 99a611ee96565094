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
	"math"
	"time"

	"github.com/logrange/range/pkg/utils/bytes"
	"github.com/logrange/range/pkg/utils/encoding/xbinary"
	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

// field value type tags
const (
	vtNull byte = iota
	vtBool
	vtInt
	vtFloat
	vtString
	vtBytes
)

// field values

func writeValue(v interface{}, ow *xbinary.ObjectsWriter) (int, error) {
	switch vv := v.(type) {
	case nil:
		return ow.WriteByte(vtNull)
	case bool:
		n, err := ow.WriteByte(vtBool)
		if err != nil {
			return n, err
		}
		b := byte(0)
		if vv {
			b = 1
		}
		nn, err := ow.WriteByte(b)
		return n + nn, err
	case int64:
		n, err := ow.WriteByte(vtInt)
		if err != nil {
			return n, err
		}
		nn, err := ow.WriteUint64(uint64(vv))
		return n + nn, err
	case float64:
		n, err := ow.WriteByte(vtFloat)
		if err != nil {
			return n, err
		}
		nn, err := ow.WriteUint64(math.Float64bits(vv))
		return n + nn, err
	case string:
		n, err := ow.WriteByte(vtString)
		if err != nil {
			return n, err
		}
		nn, err := ow.WriteString(vv)
		return n + nn, err
	case []byte:
		n, err := ow.WriteByte(vtBytes)
		if err != nil {
			return n, err
		}
		nn, err := ow.WriteBytes(vv)
		return n + nn, err
	}
	return 0, errors.Errorf("unsupported field value type %T", v)
}

func getValueSize(v interface{}) (int, error) {
	switch vv := v.(type) {
	case nil:
		return 1, nil
	case bool:
		return 2, nil
	case int64:
		return 9, nil
	case float64:
		return 9, nil
	case string:
		return 1 + xbinary.WritableStringSize(vv), nil
	case []byte:
		return 1 + xbinary.WritebleBytesSize(vv), nil
	}
	return 0, errors.Errorf("unsupported field value type %T", v)
}

func unmarshalValue(buf []byte, newBuf bool) (int, interface{}, error) {
	n, vt, err := xbinary.UnmarshalByte(buf)
	if err != nil {
		return 0, nil, err
	}
	nn := n

	switch vt {
	case vtNull:
		return nn, nil, nil
	case vtBool:
		n, b, err := xbinary.UnmarshalByte(buf[nn:])
		return nn + n, b != 0, err
	case vtInt:
		n, u, err := xbinary.UnmarshalUint64(buf[nn:])
		return nn + n, int64(u), err
	case vtFloat:
		n, u, err := xbinary.UnmarshalUint64(buf[nn:])
		return nn + n, math.Float64frombits(u), err
	case vtString:
		n, s, err := xbinary.UnmarshalString(buf[nn:], newBuf)
		return nn + n, s, err
	case vtBytes:
		n, b, err := xbinary.UnmarshalBytes(buf[nn:], newBuf)
		return nn + n, b, err
	}
	return nn, nil, errors.Errorf("unknown field value type tag %d", vt)
}

// api.Record
//
// A record goes to the wire as the plain sequence of its values. The arity and
// the field names come from the keys written once per result page or write
// packet, never per record.

func writeRecord(r *api.Record, ow *xbinary.ObjectsWriter) (int, error) {
	nn := 0
	for i := 0; i < r.Len(); i++ {
		n, err := writeValue(r.At(i), ow)
		nn += n
		if err != nil {
			return nn, err
		}
	}
	return nn, nil
}

func getRecordSize(r *api.Record) (int, error) {
	res := 0
	for i := 0; i < r.Len(); i++ {
		n, err := getValueSize(r.At(i))
		if err != nil {
			return 0, err
		}
		res += n
	}
	return res, nil
}

func unmarshalRecord(buf []byte, keys []string, newBuf bool) (int, *api.Record, error) {
	vals := make([]interface{}, len(keys))
	nn := 0
	for i := range keys {
		n, v, err := unmarshalValue(buf[nn:], newBuf)
		nn += n
		if err != nil {
			return nn, nil, err
		}
		vals[i] = v
	}
	r, err := api.NewRecord(keys, vals)
	return nn, r, err
}

// keys

func writeKeys(keys []string, ow *xbinary.ObjectsWriter) (int, error) {
	n, err := ow.WriteUint32(uint32(len(keys)))
	nn := n
	if err != nil {
		return nn, err
	}
	for _, k := range keys {
		n, err = ow.WriteString(k)
		nn += n
		if err != nil {
			return nn, err
		}
	}
	return nn, nil
}

func getKeysSize(keys []string) int {
	res := 4
	for _, k := range keys {
		res += xbinary.WritableStringSize(k)
	}
	return res
}

func unmarshalKeys(buf []byte, newBuf bool) (int, []string, error) {
	n, ln, err := xbinary.UnmarshalUint32(buf)
	nn := n
	if err != nil {
		return nn, nil, err
	}
	var keys []string
	if ln > 0 {
		keys = make([]string, int(ln))
	}
	for i := 0; i < int(ln); i++ {
		n, s, err := xbinary.UnmarshalString(buf[nn:], newBuf)
		nn += n
		if err != nil {
			return nn, nil, err
		}
		keys[i] = s
	}
	return nn, keys, nil
}

// api.QueryRequest

type writableQueryRequest api.QueryRequest

func (wqr *writableQueryRequest) WritableSize() int {
	return getQueryRequestSize((*api.QueryRequest)(wqr))
}

func (wqr *writableQueryRequest) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return writeQueryRequest((*api.QueryRequest)(wqr), ow)
}

func writeQueryRequest(qr *api.QueryRequest, ow *xbinary.ObjectsWriter) (int, error) {
	n, err := ow.WriteUint64(qr.ReqId)
	if err != nil {
		return n, err
	}
	nn := n

	n, err = ow.WriteString(qr.Query)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteString(qr.Pos)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint32(uint32(qr.Batch))
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint32(uint32(qr.Limit))
	nn += n
	return nn, err
}

func getQueryRequestSize(qr *api.QueryRequest) int {
	return xbinary.WritableStringSize(qr.Query) +
		xbinary.WritableStringSize(qr.Pos) + 16
}

func unmarshalQueryRequest(buf []byte, qr *api.QueryRequest, newBuf bool) (int, error) {
	n, v, err := xbinary.UnmarshalUint64(buf)
	if err != nil {
		return 0, err
	}
	nn := n
	qr.ReqId = v

	n, s, err := xbinary.UnmarshalString(buf[nn:], newBuf)
	nn += n
	if err != nil {
		return nn, err
	}
	qr.Query = s

	n, s, err = xbinary.UnmarshalString(buf[nn:], newBuf)
	nn += n
	if err != nil {
		return nn, err
	}
	qr.Pos = s

	n, i, err := xbinary.UnmarshalUint32(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	qr.Batch = int(i)

	n, i, err = xbinary.UnmarshalUint32(buf[nn:])
	nn += n
	qr.Limit = int(i)
	return nn, err
}

// api.Summary

type writableSummary api.Summary

func (ws *writableSummary) WritableSize() int {
	return getSummarySize((*api.Summary)(ws))
}

func (ws *writableSummary) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return writeSummary((*api.Summary)(ws), ow)
}

func writeSummary(s *api.Summary, ow *xbinary.ObjectsWriter) (int, error) {
	n, err := ow.WriteString(s.Query)
	if err != nil {
		return n, err
	}
	nn := n

	n, err = ow.WriteUint64(s.Records)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint64(s.Bytes)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint64(uint64(s.ExecTime))
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteString(s.Pos)
	nn += n
	return nn, err
}

func getSummarySize(s *api.Summary) int {
	return xbinary.WritableStringSize(s.Query) +
		xbinary.WritableStringSize(s.Pos) + 24
}

func unmarshalSummary(buf []byte, s *api.Summary, newBuf bool) (int, error) {
	n, q, err := xbinary.UnmarshalString(buf, newBuf)
	if err != nil {
		return 0, err
	}
	nn := n
	s.Query = q

	n, v, err := xbinary.UnmarshalUint64(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	s.Records = v

	n, v, err = xbinary.UnmarshalUint64(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	s.Bytes = v

	n, v, err = xbinary.UnmarshalUint64(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	s.ExecTime = time.Duration(v)

	n, p, err := xbinary.UnmarshalString(buf[nn:], newBuf)
	nn += n
	s.Pos = p
	return nn, err
}

// api.QueryResult
//
// The page layout is: keys, records count, the records, the next query request
// and the optional summary behind its presence flag. queryResultBuilder
// produces the same layout incrementally, so the server side doesn't collect
// a page in memory twice.

type queryResultBuilder struct {
	wrtr   bytes.Writer
	ow     xbinary.ObjectsWriter
	cntOff int
	recs   int
}

func (qrb *queryResultBuilder) init(p *bytes.Pool, keys []string) error {
	qrb.wrtr.Init(4096, p)
	qrb.ow.Writer = &qrb.wrtr
	qrb.recs = 0
	_, err := writeKeys(keys, &qrb.ow)
	if err != nil {
		return err
	}
	qrb.cntOff = len(qrb.wrtr.Buf())
	// reserve the records count, closeResult() patches it
	_, err = qrb.ow.WriteUint32(0)
	return err
}

func (qrb *queryResultBuilder) writeRecord(r *api.Record) error {
	_, err := writeRecord(r, &qrb.ow)
	qrb.recs++
	return err
}

func (qrb *queryResultBuilder) closeResult(nextReq *api.QueryRequest, sum *api.Summary) error {
	xbinary.MarshalUint32(uint32(qrb.recs), qrb.wrtr.Buf()[qrb.cntOff:])
	_, err := writeQueryRequest(nextReq, &qrb.ow)
	if err != nil {
		return err
	}

	if sum == nil {
		_, err = qrb.ow.WriteByte(0)
		return err
	}

	_, err = qrb.ow.WriteByte(1)
	if err != nil {
		return err
	}
	_, err = writeSummary(sum, &qrb.ow)
	return err
}

func (qrb *queryResultBuilder) buf() []byte {
	return qrb.wrtr.Buf()
}

func (qrb *queryResultBuilder) Close() error {
	return qrb.wrtr.Close()
}

func unmarshalQueryResult(buf []byte, res *api.QueryResult, newBuf bool) (int, error) {
	nn, keys, err := unmarshalKeys(buf, newBuf)
	if err != nil {
		return nn, err
	}
	res.Keys = keys

	n, ln, err := xbinary.UnmarshalUint32(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	if ln > 0 {
		res.Records = make([]*api.Record, int(ln))
	} else {
		res.Records = nil
	}

	for i := 0; i < int(ln); i++ {
		n, r, err := unmarshalRecord(buf[nn:], keys, newBuf)
		nn += n
		if err != nil {
			return nn, err
		}
		res.Records[i] = r
	}

	n, err = unmarshalQueryRequest(buf[nn:], &res.NextQueryRequest, newBuf)
	nn += n
	if err != nil {
		return nn, err
	}

	n, fl, err := xbinary.UnmarshalByte(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}

	res.Summary = nil
	if fl != 0 {
		res.Summary = new(api.Summary)
		n, err = unmarshalSummary(buf[nn:], res.Summary, newBuf)
		nn += n
	}
	return nn, err
}

// api.WriteResult

type writableWriteResult api.WriteResult

func (wwr *writableWriteResult) WritableSize() int {
	return 4
}

func (wwr *writableWriteResult) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return ow.WriteUint32(uint32(wwr.Accepted))
}

func unmarshalWriteResult(buf []byte, res *api.WriteResult) (int, error) {
	n, v, err := xbinary.UnmarshalUint32(buf)
	res.Accepted = int(v)
	return n, err
}

// hello

type helloRequest struct {
	user    string
	secret  string
	version string
}

func (hr *helloRequest) WritableSize() int {
	return xbinary.WritableStringSize(hr.user) +
		xbinary.WritableStringSize(hr.secret) +
		xbinary.WritableStringSize(hr.version)
}

func (hr *helloRequest) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	n, err := ow.WriteString(hr.user)
	if err != nil {
		return n, err
	}
	nn := n

	n, err = ow.WriteString(hr.secret)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteString(hr.version)
	nn += n
	return nn, err
}

func unmarshalHelloRequest(buf []byte, hr *helloRequest, newBuf bool) (int, error) {
	n, s, err := xbinary.UnmarshalString(buf, newBuf)
	if err != nil {
		return 0, err
	}
	nn := n
	hr.user = s

	n, s, err = xbinary.UnmarshalString(buf[nn:], newBuf)
	nn += n
	if err != nil {
		return nn, err
	}
	hr.secret = s

	n, s, err = xbinary.UnmarshalString(buf[nn:], newBuf)
	nn += n
	hr.version = s
	return nn, err
}

// release

type releaseRequest struct {
	reqId uint64
}

func (rr *releaseRequest) WritableSize() int {
	return 8
}

func (rr *releaseRequest) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return ow.WriteUint64(rr.reqId)
}

func unmarshalReleaseRequest(buf []byte, rr *releaseRequest) (int, error) {
	n, v, err := xbinary.UnmarshalUint64(buf)
	rr.reqId = v
	return n, err
}
