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

	"github.com/logrange/rdb/api"
)

type (
	// peeker wraps a Source with a one-record look-ahead buffer, so the owner
	// can check whether the sequence has more records without consuming them.
	// Like the cursor that owns it, the peeker is not safe for concurrent use.
	peeker struct {
		src Source

		// buf keeps the record pulled ahead of its consumption, valid when has is true
		buf *api.Record
		has bool

		// done indicates that no record will ever be pulled from src again:
		// either the source reported io.EOF, or discard() was called
		done bool

		// closed indicates that src.Close() has been invoked
		closed bool
	}
)

func newPeeker(src Source) *peeker {
	return &peeker{src: src}
}

// hasNext reports whether next() would return a record. It pulls the record
// into the look-ahead buffer when the buffer is empty. An error from the
// source is returned as is and doesn't change the peeker state, so the call
// could be repeated.
func (p *peeker) hasNext(ctx context.Context) (bool, error) {
	if p.has {
		return true, nil
	}
	if p.done {
		return false, nil
	}

	r, err := p.src.Next(ctx)
	if err == io.EOF {
		p.done = true
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.buf = r
	p.has = true
	return true, nil
}

// next returns the buffered or freshly pulled record, or io.EOF when the
// sequence is over
func (p *peeker) next(ctx context.Context) (*api.Record, error) {
	ok, err := p.hasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}

	r := p.buf
	p.buf = nil
	p.has = false
	return r, nil
}

// peek returns the record next() would return, keeping it available. io.EOF
// when the sequence is over.
func (p *peeker) peek(ctx context.Context) (*api.Record, error) {
	ok, err := p.hasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return p.buf, nil
}

// discard drops the buffered record, if any, and abandons the sequence - no
// record could be obtained from the peeker after the call. The source is
// closed exactly once no matter how many times discard is invoked.
func (p *peeker) discard() error {
	p.buf = nil
	p.has = false
	p.done = true

	if p.closed {
		return nil
	}
	p.closed = true
	return p.src.Close()
}
