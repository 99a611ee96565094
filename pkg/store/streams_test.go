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
	"io"
	"testing"
	"time"
)

// newTestStore returns the store with the source "logs", which contains 5
// records with the keys msg, sev and size
func newTestStore(t *testing.T) *Store {
	s := NewStore()
	keys := []string{"msg", "sev", "size"}
	_, err := s.Append("logs", keys, testRecs(t, keys,
		[]interface{}{"m0", "info", int64(10)},
		[]interface{}{"m1", "error", int64(11)},
		[]interface{}{"m2", "info", int64(12)},
		[]interface{}{"m3", "error", int64(13)},
		[]interface{}{"m4", "info", int64(14)},
	))
	if err != nil {
		t.Fatal("could not fill the store err=", err)
	}
	return s
}

// drain serves the stream to its end like the rpc handler does, returning the
// msg values of the records produced
func drain(t *testing.T, strm *Stream) []string {
	var res []string
	for {
		r, err := strm.Get(nil)
		if err == io.EOF {
			return res
		}
		if err != nil {
			t.Fatal("unexpected err=", err)
		}
		v, _ := r.Get("msg")
		res = append(res, v.(string))
		strm.Served(1, 1)
		strm.Next(nil)
	}
}

func strEq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

func TestStreamPlain(t *testing.T) {
	s := newTestStore(t)
	strm, err := newStream(State{Id: 1, Query: "select from logs"}, s)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if !strEq(strm.Keys(), []string{"msg", "sev", "size"}) {
		t.Fatal("wrong keys ", strm.Keys())
	}
	if res := drain(t, strm); !strEq(res, []string{"m0", "m1", "m2", "m3", "m4"}) {
		t.Fatal("wrong records ", res)
	}

	sum := strm.summary()
	if sum.Records != 5 || sum.Pos != "5" {
		t.Fatal("wrong summary ", sum)
	}
}

func TestStreamWhere(t *testing.T) {
	s := newTestStore(t)
	strm, err := newStream(State{Id: 1, Query: "select from logs where sev = error"}, s)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if res := drain(t, strm); !strEq(res, []string{"m1", "m3"}) {
		t.Fatal("wrong records ", res)
	}

	strm, _ = newStream(State{Id: 2, Query: "select from logs where sev = error and size > 11"}, s)
	if res := drain(t, strm); !strEq(res, []string{"m3"}) {
		t.Fatal("wrong records ", res)
	}
}

func TestStreamProjection(t *testing.T) {
	s := newTestStore(t)
	strm, err := newStream(State{Id: 1, Query: "select msg, size from logs"}, s)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if !strEq(strm.Keys(), []string{"msg", "size"}) {
		t.Fatal("wrong keys ", strm.Keys())
	}

	r, err := strm.Get(nil)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if r.Len() != 2 {
		t.Fatal("expecting 2 fields, but ", r)
	}
	if _, ok := r.Get("sev"); ok {
		t.Fatal("the field sev must be cut off, but ", r)
	}

	if _, err = newStream(State{Id: 2, Query: "select nope from logs"}, s); err == nil {
		t.Fatal("expecting the unknown field error, but got nil")
	}
}

func TestStreamOffsetLimit(t *testing.T) {
	s := newTestStore(t)
	strm, err := newStream(State{Id: 1, Query: "select from logs offset 1 limit 2"}, s)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if strm.Left() != 2 {
		t.Fatal("expecting left=2, but ", strm.Left())
	}
	if res := drain(t, strm); !strEq(res, []string{"m1", "m2"}) {
		t.Fatal("wrong records ", res)
	}
	if strm.Left() != 0 {
		t.Fatal("expecting left=0, but ", strm.Left())
	}

	// the offset counts the matched records only
	strm, _ = newStream(State{Id: 2, Query: "select from logs where sev = info offset 2"}, s)
	if res := drain(t, strm); !strEq(res, []string{"m4"}) {
		t.Fatal("wrong records ", res)
	}
}

func TestStreamPosition(t *testing.T) {
	s := newTestStore(t)
	strm, _ := newStream(State{Id: 1, Query: "select from logs position 3"}, s)
	if res := drain(t, strm); !strEq(res, []string{"m3", "m4"}) {
		t.Fatal("wrong records ", res)
	}

	strm, _ = newStream(State{Id: 2, Query: "select from logs position tail"}, s)
	if res := drain(t, strm); len(res) != 0 {
		t.Fatal("expecting no records from the tail, but ", res)
	}

	strm, _ = newStream(State{Id: 3, Query: "select from logs position head limit 1"}, s)
	if res := drain(t, strm); !strEq(res, []string{"m0"}) {
		t.Fatal("wrong records ", res)
	}

	if _, err := newStream(State{Id: 4, Query: "select from logs position -5"}, s); err == nil {
		t.Fatal("expecting the position error, but got nil")
	}
}

func TestStreamUnknownSource(t *testing.T) {
	s := newTestStore(t)
	strm, err := newStream(State{Id: 1, Query: "select from nope"}, s)
	if err != nil {
		t.Fatal("the unknown source is not an error, but err=", err)
	}
	if res := drain(t, strm); len(res) != 0 {
		t.Fatal("expecting the empty result, but ", res)
	}

	// even with the projection requested
	strm, err = newStream(State{Id: 2, Query: "select msg from nope"}, s)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if res := drain(t, strm); len(res) != 0 {
		t.Fatal("expecting the empty result, but ", res)
	}
}

func TestStreamBadQuery(t *testing.T) {
	s := newTestStore(t)
	if _, err := newStream(State{Id: 1, Query: "select"}, s); err == nil {
		t.Fatal("expecting the parse error, but got nil")
	}
	if _, err := newStream(State{Id: 2, Query: "select from logs where a like 'a[b'"}, s); err == nil {
		t.Fatal("expecting the bad pattern error, but got nil")
	}
}

func TestStreamsGetOrCreate(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	defer ss.Shutdown()

	strm, err := ss.GetOrCreate(nil, State{Query: "select from logs"})
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if e, ok := ss.strms[strm.id]; !ok || e != ss.busy {
		t.Fatal("strm=", strm, ", was not found")
	}

	// the stream is checked out, the concurrent request must be rejected
	if _, err = ss.GetOrCreate(nil, State{Id: strm.id, Query: "select from logs"}); err == nil {
		t.Fatal("expecting the usage violation error, but got nil")
	}

	// serve 2 records and give the stream back
	r, _ := strm.Get(nil)
	if v, _ := r.Get("msg"); v != "m0" {
		t.Fatal("expecting m0, but ", r)
	}
	strm.Served(1, 1)
	strm.Next(nil)
	strm.Get(nil)
	strm.Served(1, 1)
	strm.Next(nil)
	st := ss.Release(strm)
	if st.Id != strm.id || st.Pos != "2" {
		t.Fatal("wrong state ", st)
	}

	// the same state brings the same stream back
	strm2, err := ss.GetOrCreate(nil, st)
	if err != nil || strm2 != strm {
		t.Fatal("expecting the same stream, but strm2=", strm2, ", err=", err)
	}
	r, _ = strm2.Get(nil)
	if v, _ := r.Get("msg"); v != "m2" {
		t.Fatal("expecting m2, but ", r)
	}
	ss.Release(strm2)
}

func TestStreamsRecreate(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	defer ss.Shutdown()

	// the state of a swept stream recreates it with the id kept
	st := State{Id: 12345, Query: "select from logs", Pos: "3", Limit: 1}
	strm, err := ss.GetOrCreate(nil, st)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if strm.id != 12345 {
		t.Fatal("the stream id must be kept, but ", strm)
	}
	if res := drain(t, strm); !strEq(res, []string{"m3"}) {
		t.Fatal("wrong records ", res)
	}

	// the state with another query must not hijack the known stream
	ss.Release(strm)
	strm2, err := ss.GetOrCreate(nil, State{Id: 12345, Query: "select from logs where sev = error"})
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if strm2 == strm {
		t.Fatal("expecting the new stream to be created")
	}
	if len(ss.strms) != 2 {
		t.Fatal("expecting 2 streams in the registry, but ", len(ss.strms))
	}
}

func TestStreamsComplete(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	defer ss.Shutdown()

	strm, _ := ss.GetOrCreate(nil, State{Query: "select from logs"})
	drain(t, strm)
	sum := ss.Complete(strm)
	if sum.Records != 5 || sum.Pos != "5" {
		t.Fatal("wrong summary ", sum)
	}
	if len(ss.strms) != 0 || ss.busy != nil || ss.freePoolSz != 1 {
		t.Fatal("the stream must leave the registry")
	}

	if _, ok := ss.Drop(strm.id); ok {
		t.Fatal("the completed stream must not be droppable")
	}
}

func TestStreamsDrop(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	defer ss.Shutdown()

	strm, _ := ss.GetOrCreate(nil, State{Query: "select from logs"})
	strm.Get(nil)
	strm.Served(1, 10)
	strm.Next(nil)
	ss.Release(strm)

	sum, ok := ss.Drop(strm.id)
	if !ok || sum.Records != 1 || sum.Bytes != 10 || sum.Pos != "1" {
		t.Fatal("expecting the summary of the dropped stream, but sum=", sum, ", ok=", ok)
	}

	if _, ok = ss.Drop(strm.id); ok {
		t.Fatal("the second drop must find nothing")
	}

	// the release of the dropped stream is not fatal
	strm2, _ := ss.GetOrCreate(nil, State{Query: "select from logs"})
	ss.Drop(strm2.id)
	st := ss.Release(strm2)
	if st.Id != 0 {
		t.Fatal("the state of the gone stream must have Id=0, but ", st)
	}
}

func TestStreamsSweepByTime(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	ss.idleTo = time.Millisecond
	if err := ss.Init(nil); err != nil {
		t.Fatal("Init() err=", err)
	}
	defer ss.Shutdown()

	strm1, _ := ss.GetOrCreate(nil, State{Query: "select from logs"})
	strm2, _ := ss.GetOrCreate(nil, State{Query: "select from logs limit 2"})

	time.Sleep(10 * time.Millisecond)
	ss.lock.Lock()
	sz := len(ss.strms)
	ss.lock.Unlock()
	if sz != 2 {
		t.Fatal("the busy streams must not be swept, but size=", sz)
	}

	ss.Release(strm2)
	time.Sleep(20 * time.Millisecond)
	ss.lock.Lock()
	sz = len(ss.strms)
	_, ok1 := ss.strms[strm1.id]
	fps := ss.freePoolSz
	ss.lock.Unlock()
	if sz != 1 || !ok1 || fps != 1 {
		t.Fatal("the idle stream must be swept, size=", sz, ", freePoolSz=", fps)
	}
}

func TestStreamsSweepBySize(t *testing.T) {
	ss := NewStreams()
	ss.Store = newTestStore(t)
	ss.maxStrms = 1
	defer ss.Shutdown()

	strm1, _ := ss.GetOrCreate(nil, State{Query: "select from logs"})
	strm2, _ := ss.GetOrCreate(nil, State{Query: "select from logs limit 2"})

	ss.sweepBySize()
	if len(ss.strms) != 1 {
		t.Fatal("expecting 1 stream left, but ", len(ss.strms))
	}
	if _, ok := ss.strms[strm1.id]; ok {
		t.Fatal("the oldest stream must be swept first")
	}
	if _, ok := ss.strms[strm2.id]; !ok {
		t.Fatal("the newest stream must survive")
	}
}
