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
	"testing"

	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

type fakeQuerier struct {
	pages    []api.QueryResult
	idx      int
	queries  int
	releases int
	relId    uint64
	relSum   api.Summary
	qErr     error
}

func (fq *fakeQuerier) Query(ctx context.Context, req *api.QueryRequest, res *api.QueryResult) error {
	if fq.qErr != nil {
		return fq.qErr
	}
	fq.queries++
	if fq.idx >= len(fq.pages) {
		return errors.Errorf("unexpected query call #%d", fq.queries)
	}
	*res = fq.pages[fq.idx]
	fq.idx++
	return nil
}

func (fq *fakeQuerier) Release(ctx context.Context, reqId uint64, res *api.Summary) error {
	fq.releases++
	fq.relId = reqId
	*res = fq.relSum
	return nil
}

func mkRec(t *testing.T, keys []string, vals ...interface{}) *api.Record {
	r, err := api.NewRecord(keys, vals)
	if err != nil {
		t.Fatal("could not build the record err=", err)
	}
	return r
}

func TestQueryStreamPaging(t *testing.T) {
	keys := []string{"msg"}
	fq := &fakeQuerier{pages: []api.QueryResult{
		{Keys: keys, Records: []*api.Record{mkRec(t, keys, "a"), mkRec(t, keys, "b")},
			NextQueryRequest: api.QueryRequest{ReqId: 5, Query: "select from src", Pos: "2"}},
		{Keys: keys, Records: []*api.Record{mkRec(t, keys, "c")},
			NextQueryRequest: api.QueryRequest{Query: "select from src", Pos: "3"},
			Summary:          &api.Summary{Query: "select from src", Records: 3, Pos: "3"}},
	}}

	qs, err := OpenQueryStream(context.Background(), fq, &api.QueryRequest{Query: "select from src", Batch: 2})
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if len(qs.Keys()) != 1 || qs.Keys()[0] != "msg" {
		t.Fatal("wrong keys ", qs.Keys())
	}

	sum := qs.Summary()
	for _, exp := range []string{"a", "b", "c"} {
		r, err := qs.Next(context.Background())
		if err != nil {
			t.Fatal("unexpected err=", err)
		}
		if v, _ := r.Get("msg"); v != exp {
			t.Fatal("expecting ", exp, ", but got ", v)
		}
	}

	if _, err := qs.Next(context.Background()); err != io.EOF {
		t.Fatal("expecting io.EOF, but err=", err)
	}
	if fq.queries != 2 {
		t.Fatal("expecting 2 query calls, but ", fq.queries)
	}
	if qs.Summary() != sum || sum.Records != 3 || sum.Pos != "3" {
		t.Fatal("the summary identity must not change and it must be filled, sum=", sum)
	}

	// the stream is exhausted, Close() must not go to the server
	if err := qs.Close(); err != nil {
		t.Fatal("unexpected err=", err)
	}
	if fq.releases != 0 {
		t.Fatal("expecting no releases, but ", fq.releases)
	}
}

func TestQueryStreamEarlyClose(t *testing.T) {
	keys := []string{"msg"}
	fq := &fakeQuerier{
		pages: []api.QueryResult{
			{Keys: keys, Records: []*api.Record{mkRec(t, keys, "a"), mkRec(t, keys, "b")},
				NextQueryRequest: api.QueryRequest{ReqId: 42, Query: "select from src", Pos: "2"}},
		},
		relSum: api.Summary{Query: "select from src", Records: 2, Pos: "2"},
	}

	qs, err := OpenQueryStream(context.Background(), fq, &api.QueryRequest{Query: "select from src"})
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if _, err := qs.Next(context.Background()); err != nil {
		t.Fatal("unexpected err=", err)
	}

	if err := qs.Close(); err != nil {
		t.Fatal("unexpected err=", err)
	}
	if fq.releases != 1 || fq.relId != 42 {
		t.Fatal("expecting 1 release of the stream 42, but releases=", fq.releases, ", relId=", fq.relId)
	}
	if qs.Summary().Records != 2 || qs.Summary().Pos != "2" {
		t.Fatal("the summary must be filled from the release response, sum=", qs.Summary())
	}

	// the buffered record must be dropped
	if _, err := qs.Next(context.Background()); err != io.EOF {
		t.Fatal("expecting io.EOF after Close(), but err=", err)
	}

	// the second Close() must not produce another release
	if err := qs.Close(); err != nil {
		t.Fatal("unexpected err=", err)
	}
	if fq.releases != 1 {
		t.Fatal("expecting 1 release, but ", fq.releases)
	}
}

func TestQueryStreamOpenError(t *testing.T) {
	fq := &fakeQuerier{qErr: errors.New("no server")}
	if _, err := OpenQueryStream(context.Background(), fq, &api.QueryRequest{Query: "select from src"}); err == nil {
		t.Fatal("expecting an error, but got nil")
	}
}

func TestQueryStreamEmptyResult(t *testing.T) {
	fq := &fakeQuerier{pages: []api.QueryResult{
		{Keys: []string{"msg"}, Summary: &api.Summary{Query: "select from src", Pos: "0"}},
	}}

	qs, err := OpenQueryStream(context.Background(), fq, &api.QueryRequest{Query: "select from src"})
	if err != nil {
		t.Fatal("unexpected err=", err)
	}
	if _, err := qs.Next(context.Background()); err != io.EOF {
		t.Fatal("expecting io.EOF, but err=", err)
	}
	if qs.Summary().Pos != "0" {
		t.Fatal("the summary must be filled, sum=", qs.Summary())
	}
}
