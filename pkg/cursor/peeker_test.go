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
	"testing"

	"github.com/pkg/errors"
)

func TestPeekerWalk(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(2)
	p := newPeeker(NewRecordsSource(recs...))

	ok, err := p.hasNext(ctx)
	if !ok || err != nil {
		t.Fatal("hasNext must be true, but ok=", ok, ", err=", err)
	}

	r, err := p.peek(ctx)
	if err != nil || r != recs[0] {
		t.Fatal("peek must return the first record, but r=", r, ", err=", err)
	}

	// peek must not consume the record
	r, err = p.next(ctx)
	if err != nil || r != recs[0] {
		t.Fatal("next must return the first record, but r=", r, ", err=", err)
	}

	r, err = p.next(ctx)
	if err != nil || r != recs[1] {
		t.Fatal("next must return the second record, but r=", r, ", err=", err)
	}

	if ok, err = p.hasNext(ctx); ok || err != nil {
		t.Fatal("hasNext must be false at the end, but ok=", ok, ", err=", err)
	}
	if _, err = p.next(ctx); err != io.EOF {
		t.Fatal("next must return io.EOF at the end, but err=", err)
	}
	if _, err = p.peek(ctx); err != io.EOF {
		t.Fatal("peek must return io.EOF at the end, but err=", err)
	}
}

func TestPeekerDiscard(t *testing.T) {
	ctx := context.Background()
	ct := &closeTracker{src: NewRecordsSource(testRecords(3)...)}
	p := newPeeker(ct)

	// pull one record into the buffer and drop everything
	if ok, err := p.hasNext(ctx); !ok || err != nil {
		t.Fatal("hasNext must be true, but ok=", ok, ", err=", err)
	}
	if err := p.discard(); err != nil {
		t.Fatal("discard err must be nil, but err=", err)
	}

	if ok, _ := p.hasNext(ctx); ok {
		t.Fatal("hasNext must be false after discard")
	}
	if _, err := p.next(ctx); err != io.EOF {
		t.Fatal("next must return io.EOF after discard, but err=", err)
	}

	// discard is idempotent, the source is closed once
	p.discard()
	p.discard()
	if ct.closes != 1 {
		t.Fatal("the source must be closed exactly once, but closes=", ct.closes)
	}
}

func TestPeekerSourceError(t *testing.T) {
	ctx := context.Background()
	sErr := errors.New("transport is down")
	p := newPeeker(&errSource{recs: testRecords(1), err: sErr})

	if r, err := p.next(ctx); err != nil || r == nil {
		t.Fatal("the first record must be served, but r=", r, ", err=", err)
	}

	// the source failure is returned as is and doesn't end the sequence
	if _, err := p.hasNext(ctx); err != sErr {
		t.Fatal("hasNext must return the source error, but err=", err)
	}
	if _, err := p.next(ctx); err != sErr {
		t.Fatal("next must return the source error, but err=", err)
	}
	if _, err := p.peek(ctx); err != sErr {
		t.Fatal("peek must return the source error, but err=", err)
	}
}
