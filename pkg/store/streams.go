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

package store

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrivets/log4g"
	wpctx "github.com/logrange/range/pkg/context"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/pkg/container"
	"github.com/logrange/rdb/pkg/rql"
	"github.com/logrange/rdb/pkg/utils"
	"github.com/pkg/errors"
)

type (
	// State describes a stream snapshot which travels between the server and
	// a client within the paging protocol. A stream dropped from the registry
	// can be recreated from its State, cause the State contains everything
	// needed for that: the query, the position and the records left to serve.
	State struct {
		// Id identifies the stream, 0 means a new stream must be created
		Id uint64

		// Query contains the RQL text of the stream
		Query string

		// Pos contains the read position. For a new stream it could be empty,
		// "head", "tail" or the absolute index, for a known stream it is
		// always the absolute index.
		Pos string

		// Limit contains the number of records left to serve, 0 means the
		// stream is unbound
		Limit int
	}

	// Stream is the server-side reader of one query. It walks the records of
	// the queried source applying the WHERE condition and the field
	// projection, and it counts what it has produced for the final summary.
	// Streams are checked out of the registry for one page at a time, so no
	// internal locking is needed.
	Stream struct {
		id      uint64
		query   string
		src     string
		keys    []string
		proj    []int
		where   rql.WhereFunc
		store   *Store
		missing bool
		pos     int
		skip    int
		left    int
		recs    uint64
		bytes   uint64
		started time.Time
		cur     *api.Record
	}

	// Streams is the registry of the server-side streams. A stream is checked
	// out by GetOrCreate, served and then either returned back by Release or
	// finalized by Complete or Drop. Idle and forgotten streams are swept away
	// by the timeout, what doesn't break the paging: the next page request
	// carries the State the stream is recreated from.
	Streams struct {
		Store *Store `inject:""`

		logger     log4g.Logger
		lock       sync.Mutex
		busy       *container.CLElement
		free       *container.CLElement
		freePoolSz int
		strms      map[uint64]*container.CLElement
		clsdCh     chan struct{}

		maxStrms int
		idleTo   time.Duration
		busyTo   time.Duration
	}

	strmHldr struct {
		busy    bool
		strm    *Stream
		expTime time.Time
	}
)

// NewStreams creates the new stream registry
func NewStreams() *Streams {
	ss := new(Streams)
	ss.logger = log4g.GetLogger("store.streams")
	ss.strms = make(map[uint64]*container.CLElement)
	ss.clsdCh = make(chan struct{})
	ss.maxStrms = 50000
	ss.idleTo = 60 * time.Second
	ss.busyTo = 5 * time.Minute
	return ss
}

// Init is part of linker.Initializer
func (ss *Streams) Init(ctx context.Context) error {
	go ss.sweeper()
	return nil
}

// Shutdown is part of linker.Shutdowner
func (ss *Streams) Shutdown() {
	close(ss.clsdCh)
}

// GetOrCreate returns the stream for the state provided, creating it when the
// state refers to no known stream. The returned stream is checked out: it must
// be given back by Release or finalized by Complete, and until that any other
// GetOrCreate for the same id fails.
func (ss *Streams) GetOrCreate(ctx context.Context, state State) (*Stream, error) {
	var res *Stream
	if state.Id > 0 {
		ss.lock.Lock()
		if e, ok := ss.strms[state.Id]; ok {
			sh := e.Val.(*strmHldr)
			if sh.busy {
				ss.lock.Unlock()
				return nil, errors.Errorf("stream usage violation: concurrent request for id=%d", state.Id)
			}

			if err := sh.strm.applyState(state); err != nil {
				ss.logger.Warn("could not apply the state ", state, " to the stream ", sh.strm, ", will create the new one. err=", err)
				state.Id = 0
			} else {
				sh.busy = true
				sh.expTime = time.Now().Add(ss.busyTo)
				ss.busy = ss.busy.TearOff(e)
				ss.busy = e.Append(ss.busy)
				res = sh.strm
			}
		}
		ss.lock.Unlock()
	}

	if res != nil {
		return res, nil
	}

	if state.Id == 0 {
		state.Id = utils.NextSimpleId()
	}

	strm, err := newStream(state, ss.Store)
	if err != nil {
		return nil, err
	}

	ss.lock.Lock()
	e := ss.free
	if e != nil {
		ss.free = ss.free.TearOff(e)
		ss.freePoolSz--
	} else {
		e = container.NewCLElement()
		e.Val = &strmHldr{}
	}
	sh := e.Val.(*strmHldr)
	sh.busy = true
	sh.strm = strm
	sh.expTime = time.Now().Add(ss.busyTo)
	ss.busy = e.Append(ss.busy)
	ss.strms[strm.id] = e
	ss.logger.Debug("putting the stream ", strm, " into the registry, its size is ", len(ss.strms))
	ss.lock.Unlock()

	return strm, nil
}

// Release gives the checked-out stream back to the registry and returns the
// state a client needs for requesting the next page
func (ss *Streams) Release(strm *Stream) State {
	res := strm.state()
	ss.lock.Lock()
	e, ok := ss.strms[strm.id]
	if !ok {
		ss.lock.Unlock()
		ss.logger.Debug("releasing the stream, which is not in the registry anymore: ", strm)
		res.Id = 0
		return res
	}

	sh := e.Val.(*strmHldr)
	if !sh.busy {
		ss.lock.Unlock()
		panic("incorrect usage - releasing a stream, which is not checked out")
	}

	sh.busy = false
	sh.expTime = time.Now().Add(ss.idleTo)
	ss.busy = ss.busy.TearOff(e)
	ss.busy = e.Append(ss.busy)
	ss.lock.Unlock()
	return res
}

// Complete finalizes the checked-out stream: it leaves the registry forever
// and its summary is returned
func (ss *Streams) Complete(strm *Stream) *api.Summary {
	sum := strm.summary()
	ss.lock.Lock()
	if e, ok := ss.strms[strm.id]; ok {
		ss.removeHldr(e)
	}
	ss.lock.Unlock()
	return sum
}

// Drop removes the stream by its id, it serves the client-initiated release.
// The second result is false when the id refers to no stream. Dropping a
// checked-out stream is allowed: the serving call finds the stream gone when
// it returns it back, which is fine.
func (ss *Streams) Drop(id uint64) (*api.Summary, bool) {
	ss.lock.Lock()
	e, ok := ss.strms[id]
	if !ok {
		ss.lock.Unlock()
		return nil, false
	}
	sum := e.Val.(*strmHldr).strm.summary()
	ss.removeHldr(e)
	ss.lock.Unlock()
	return sum, true
}

// removeHldr tears the holder off the busy list, removes it from the map and
// puts it into the free pool. ss.lock must be held.
func (ss *Streams) removeHldr(e *container.CLElement) {
	sh := e.Val.(*strmHldr)
	ss.busy = ss.busy.TearOff(e)
	delete(ss.strms, sh.strm.id)
	sh.strm = nil
	sh.busy = false
	if ss.freePoolSz < 1000 {
		ss.free = e.Append(ss.free)
		ss.freePoolSz++
	}
}

func (ss *Streams) sweeper() {
	ss.logger.Info("sweeper(): starting")
	defer ss.logger.Info("sweeper(): over")

	ctx := wpctx.WrapChannel(ss.clsdCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(ss.idleTo / 5):
		}

		ss.lock.Lock()
		ss.sweepBySize()
		ss.sweepByTime()
		ss.lock.Unlock()
	}
}

func (ss *Streams) sweepBySize() {
	cnt := 0
	for len(ss.strms) > ss.maxStrms {
		ss.removeHldr(ss.busy.Prev())
		cnt++
	}
	if cnt > 0 {
		ss.logger.Warn(cnt, " streams were removed due to oversize. maxStrms=", ss.maxStrms)
	}
}

func (ss *Streams) sweepByTime() {
	now := time.Now()
	e := ss.busy
	cnt := len(ss.strms)
	rmvd := 0
	for e != nil && cnt > 0 {
		e = e.Prev()
		sh := e.Val.(*strmHldr)
		if sh.expTime.Before(now) {
			if sh.busy {
				ss.logger.Warn("removing the stream ", sh.strm, " due to the timeout, but it is not returned yet!")
			}
			e1 := e.Next()
			ss.removeHldr(e)
			e = e1
			rmvd++
		} else if !sh.busy {
			return
		}
		cnt--
	}
	if rmvd > 0 {
		ss.logger.Debug(rmvd, " streams were deleted due to their timeouts.")
	}
}

func (s State) String() string {
	return fmt.Sprintf("{Id: %d, Query: %q, Pos: %q, Limit: %d}", s.Id, s.Query, s.Pos, s.Limit)
}

// newStream builds the stream from its state. A query over an unknown source
// is not an error, it produces the empty result: for an append-only database
// a source exists as soon as something is written into it, which may not have
// happened yet.
func newStream(state State, s *Store) (*Stream, error) {
	sel, err := rql.Parse(state.Query)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the query %q", state.Query)
	}

	where, err := rql.BuildWhereFunc(sel.Where)
	if err != nil {
		return nil, err
	}

	strm := new(Stream)
	strm.id = state.Id
	strm.query = state.Query
	strm.src = sel.From
	strm.where = where
	strm.store = s
	strm.started = time.Now()

	srcKeys := s.Keys(strm.src)
	strm.missing = srcKeys == nil
	strm.keys = srcKeys
	if len(sel.Fields) > 0 {
		strm.keys = sel.Fields
		if !strm.missing {
			strm.proj = make([]int, len(sel.Fields))
			for i, f := range sel.Fields {
				idx := keyIndex(srcKeys, f)
				if idx < 0 {
					return nil, errors.Errorf("unknown field %q in the source %q", f, strm.src)
				}
				strm.proj[i] = idx
			}
		}
	}

	strm.left = -1
	if sel.Limit != nil {
		strm.left = int(*sel.Limit)
	}
	if state.Limit > 0 {
		strm.left = state.Limit
	}

	posTok := ""
	if sel.Position != nil {
		posTok = sel.Position.PosId
	}
	if state.Pos != "" {
		posTok = state.Pos
	}
	strm.pos, err = resolvePos(s, strm.src, posTok)
	if err != nil {
		return nil, err
	}

	// the OFFSET clause is consumed once, a recreated stream must not skip again
	if sel.Offset != nil && state.Pos == "" {
		strm.skip = int(*sel.Offset)
	}
	return strm, nil
}

// resolvePos turns the position token into the absolute index within the source
func resolvePos(s *Store, src, tok string) (int, error) {
	switch strings.ToLower(tok) {
	case "", "head":
		return 0, nil
	case "tail":
		return s.Len(src), nil
	}

	pos, err := strconv.Atoi(tok)
	if err != nil || pos < 0 {
		return 0, errors.Errorf("unknown position %q, expecting \"head\", \"tail\" or a non-negative index", tok)
	}
	return pos, nil
}

// applyState repositions the known stream. The stream is recreatable from any
// of its states, so a mismatch here is not fatal: the caller forgets the
// stream and builds the new one.
func (strm *Stream) applyState(state State) error {
	if state.Query != "" && state.Query != strm.query {
		return errors.Errorf("cannot apply the state %s to the stream %s, the queries are different", state, strm)
	}
	if state.Pos != "" {
		pos, err := strconv.Atoi(state.Pos)
		if err != nil || pos < 0 {
			return errors.Errorf("wrong position %q in the state %s", state.Pos, state)
		}
		if pos != strm.pos {
			strm.pos = pos
			strm.cur = nil
		}
	}
	if state.Limit > 0 {
		strm.left = state.Limit
	}
	return nil
}

// Keys returns the field names of the stream records
func (strm *Stream) Keys() []string {
	return strm.keys
}

// Left returns how many records the stream may serve yet: -1 means no bound,
// 0 means the limit is exhausted
func (strm *Stream) Left() int {
	return strm.left
}

// Get returns the record at the current position, walking forward to the
// first one which matches the WHERE condition. It returns io.EOF when there
// are no more records. Repeated Get without Next returns the same record.
func (strm *Stream) Get(ctx context.Context) (*api.Record, error) {
	if strm.cur != nil {
		return strm.cur, nil
	}
	if strm.missing || strm.left == 0 {
		return nil, io.EOF
	}

	for {
		r, ok := strm.store.At(strm.src, strm.pos)
		if !ok {
			return nil, io.EOF
		}
		if strm.where(r) {
			if strm.skip > 0 {
				strm.skip--
				strm.pos++
				continue
			}
			strm.cur, ok = strm.project(r)
			if !ok {
				return nil, errors.Errorf("could not project the record at %d of the source %q", strm.pos, strm.src)
			}
			return strm.cur, nil
		}
		strm.pos++
	}
}

// Next moves the stream behind the record returned by the last Get
func (strm *Stream) Next(ctx context.Context) {
	if strm.cur != nil {
		strm.cur = nil
		strm.pos++
	}
}

// Served accounts the records the caller has actually sent to the client
func (strm *Stream) Served(recs int, bytes uint64) {
	strm.recs += uint64(recs)
	strm.bytes += bytes
	if strm.left > 0 {
		strm.left -= recs
		if strm.left < 0 {
			strm.left = 0
		}
	}
}

func (strm *Stream) project(r *api.Record) (*api.Record, bool) {
	if strm.proj == nil {
		return r, true
	}
	vals := make([]interface{}, len(strm.proj))
	for i, idx := range strm.proj {
		vals[i] = r.At(idx)
	}
	res, err := api.NewRecord(strm.keys, vals)
	return res, err == nil
}

func (strm *Stream) state() State {
	lim := 0
	if strm.left > 0 {
		lim = strm.left
	}
	return State{Id: strm.id, Query: strm.query, Pos: strconv.Itoa(strm.pos), Limit: lim}
}

func (strm *Stream) summary() *api.Summary {
	return &api.Summary{
		Query:    strm.query,
		Records:  strm.recs,
		Bytes:    strm.bytes,
		ExecTime: time.Since(strm.started),
		Pos:      strconv.Itoa(strm.pos),
	}
}

func (strm *Stream) String() string {
	return fmt.Sprintf("{id: %d, query: %q, pos: %d, left: %d, recs: %d}", strm.id, strm.query, strm.pos, strm.left, strm.recs)
}

func keyIndex(keys []string, name string) int {
	for i, k := range keys {
		if k == name {
			return i
		}
	}
	return -1
}
