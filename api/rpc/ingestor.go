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
	"sync"

	"github.com/jrivets/log4g"
	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/utils/encoding/xbinary"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/pkg/store"
	"github.com/pkg/errors"
)

type (
	// ServerIngestor provides the write RPC endpoint, it appends the received
	// records to the store
	ServerIngestor struct {
		Store   *store.Store    `inject:""`
		MainCtx context.Context `inject:"mainCtx"`

		wg     sync.WaitGroup
		logger log4g.Logger
	}

	clntIngestor struct {
		rc rrpc.Client
	}

	// writePacket is the wire form of one Write call: the source name, the
	// keys shared by all the records of the packet and the records themselves
	writePacket struct {
		source string
		keys   []string
		recs   []*api.Record
	}
)

type emptyResponse int

func (er emptyResponse) WritableSize() int {
	return 0
}

func (er emptyResponse) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return 0, nil
}

const cEmptyResponse = emptyResponse(0)

func NewServerIngestor() *ServerIngestor {
	si := new(ServerIngestor)
	si.logger = log4g.GetLogger("rpc.ingestor")
	return si
}

// Init for implementing linker.Initializer
func (si *ServerIngestor) Init(ctx context.Context) error {
	return nil
}

// Shutdown is a part of linker.Shutdowner
func (si *ServerIngestor) Shutdown() {
	si.wg.Wait()
}

func (ci *clntIngestor) Write(ctx context.Context, source string, recs []*api.Record, res *api.WriteResult) error {
	if len(recs) == 0 {
		if res != nil {
			res.Accepted = 0
			res.Err = nil
		}
		return nil
	}

	var wp writePacket
	wp.source = source
	wp.keys = recs[0].Keys()
	wp.recs = recs
	if err := checkWritePacket(&wp); err != nil {
		return err
	}

	buf, opErr, err := ci.rc.Call(ctx, cRpcEpIngestorWrite, &wp)
	if err != nil {
		return err
	}

	if res != nil {
		if opErr == nil {
			_, err = unmarshalWriteResult(buf, res)
		}
		res.Err = opErr
	}
	ci.rc.Collect(buf)

	return err
}

// checkWritePacket makes sure the packet is encodable before anything is put
// on the wire: all the records must share the keys and carry supported value
// types only. WriteTo cannot fail half-way then.
func checkWritePacket(wp *writePacket) error {
	for i, r := range wp.recs {
		if r == nil {
			return errors.Errorf("nil record at index %d", i)
		}
		if !equalKeys(wp.keys, r.Keys()) {
			return errors.Errorf("all records of one write must have the same keys, but the record at index %d has %v instead of %v",
				i, r.Keys(), wp.keys)
		}
		if _, err := getRecordSize(r); err != nil {
			return errors.Wrapf(err, "the record at index %d is not encodable", i)
		}
	}
	return nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, k := range a {
		if b[i] != k {
			return false
		}
	}
	return true
}

func (si *ServerIngestor) write(reqId int32, reqBody []byte, sc *rrpc.ServerConn) {
	si.wg.Add(1)
	defer si.wg.Done()

	var wp writePacket
	_, err := unmarshalWritePacket(reqBody, &wp, false)
	if err != nil {
		si.logger.Warn("write(): received a request with unmarshalable body err=", err)
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}

	var res api.WriteResult
	res.Accepted, err = si.Store.Append(wp.source, wp.keys, wp.recs)
	if err != nil {
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}
	sc.SendResponse(reqId, nil, (*writableWriteResult)(&res))
}

// WritableSize is part of xbinary.Writable. The packet must be checked by
// checkWritePacket before, so the records sizes cannot fail here.
func (wp *writePacket) WritableSize() int {
	res := xbinary.WritableStringSize(wp.source)
	res += getKeysSize(wp.keys)
	// the records count goes as well
	res += 4
	for _, r := range wp.recs {
		n, _ := getRecordSize(r)
		res += n
	}
	return res
}

// WriteTo is part of xbinary.Writable
func (wp *writePacket) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	n, err := ow.WriteString(wp.source)
	nn := n
	if err != nil {
		return nn, err
	}

	n, err = writeKeys(wp.keys, ow)
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint32(uint32(len(wp.recs)))
	nn += n
	for _, r := range wp.recs {
		n, err = writeRecord(r, ow)
		nn += n
		if err != nil {
			return nn, err
		}
	}

	return nn, nil
}

func unmarshalWritePacket(buf []byte, wp *writePacket, newBuf bool) (int, error) {
	nn, s, err := xbinary.UnmarshalString(buf, newBuf)
	if err != nil {
		return nn, err
	}
	wp.source = s

	n, keys, err := unmarshalKeys(buf[nn:], newBuf)
	nn += n
	if err != nil {
		return nn, err
	}
	wp.keys = keys

	n, ln, err := xbinary.UnmarshalUint32(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}

	wp.recs = nil
	if ln > 0 {
		wp.recs = make([]*api.Record, int(ln))
	}
	for i := 0; i < int(ln); i++ {
		n, r, err := unmarshalRecord(buf[nn:], keys, newBuf)
		nn += n
		if err != nil {
			return nn, err
		}
		wp.recs[i] = r
	}
	return nn, nil
}
