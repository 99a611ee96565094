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

// Package cursor provides the Cursor - the object for walking the records of
// a query result in one direction, with a well defined position, look-ahead
// and early termination rules. The records come from a Source, which could be
// anything from an in-memory slice to a stream paged from a server.
package cursor

import (
	"context"
	"fmt"
	"io"

	"github.com/logrange/rdb/api"
)

type (
	// Cursor struct provides access to the records of a query result. It keeps
	// the current record, the position of the record in the result and an
	// optional consumption limit. The position starts at -1 (before the first
	// record) and only grows, the walked records are never revisited.
	//
	// The Cursor is inherently stateful, so it is NOT safe for concurrent use.
	// The caller owns it exclusively and invokes the operations sequentially.
	Cursor struct {
		keys    []string
		pkr     *peeker
		summary *api.Summary
		current *api.Record
		pos     int64
		limit   int64
		open    bool
	}

	// MapF is a record mapping function used by ListF. It receives the cursor
	// positioned on the record to be mapped.
	MapF func(c *Cursor) (interface{}, error)
)

// New creates a Cursor over the records provided by src. keys contains the
// ordered field names shared by all the records of the result. sum is the
// summary object of the query, it may be nil when no summary will ever be
// available. The cursor owns src and closes it when the consumption is over.
func New(keys []string, src Source, sum *api.Summary) *Cursor {
	c := new(Cursor)
	c.keys = keys
	c.pkr = newPeeker(src)
	c.summary = sum
	c.pos = -1
	c.limit = -1
	c.open = true
	return c
}

// String returns the cursor description
func (c *Cursor) String() string {
	return fmt.Sprintf("{keys: %v, pos: %d, limit: %d, open: %t}", c.keys, c.pos, c.limit, c.open)
}

// Keys returns the ordered field names of the result records. The result must
// not be modified by the caller.
func (c *Cursor) Keys() []string {
	return c.keys
}

// Size returns the number of fields in every record of the result
func (c *Cursor) Size() int {
	return len(c.keys)
}

// ContainsKey reports whether the result records contain the field key
func (c *Cursor) ContainsKey(key string) bool {
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}

// IsOpen reports whether the cursor has not been closed yet
func (c *Cursor) IsOpen() bool {
	return c.open
}

// Record returns the record the cursor currently points at. It fails with a
// NoSuchRecordError if the cursor has not been advanced to a record yet.
func (c *Cursor) Record() (*api.Record, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}
	if c.current == nil {
		return nil, newNoSuchRecordError("there is no current record, Next() must be called first to point the cursor at a record")
	}
	return c.current, nil
}

// Index returns the position of the field key in the current record, or -1
// if the record doesn't contain the field. It fails the same way Record does
// when the cursor doesn't point at a record.
func (c *Cursor) Index(key string) (int, error) {
	r, err := c.Record()
	if err != nil {
		return -1, err
	}
	return r.Index(key), nil
}

// Position returns the position of the current record in the result. It is -1
// until the cursor is advanced the first time and it grows by one with every
// successful advance.
func (c *Cursor) Position() (int64, error) {
	if err := c.assertOpen(); err != nil {
		return 0, err
	}
	return c.pos, nil
}

// AtEnd reports whether no record could be obtained by advancing the cursor.
// The check may pull the next record from the source into the look-ahead
// buffer, so it could block.
func (c *Cursor) AtEnd(ctx context.Context) (bool, error) {
	if err := c.assertOpen(); err != nil {
		return false, err
	}
	ok, err := c.pkr.hasNext(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Next advances the cursor to the next record of the result. It returns true
// if the cursor points at a new record afterwards, or false if the result is
// over. When the advance reaches the consumption limit (see Limit), the rest
// of the result is discarded eagerly, but the obtained record stays current.
func (c *Cursor) Next(ctx context.Context) (bool, error) {
	if err := c.assertOpen(); err != nil {
		return false, err
	}

	r, err := c.pkr.next(ctx)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.current = r
	c.pos++
	if c.pos == c.limit {
		c.pkr.discard()
	}
	return true, nil
}

// Skip advances the cursor up to n records forward and returns the number of
// records actually skipped, which is less than n only if the result ends
// earlier. Negative n is a misuse.
func (c *Cursor) Skip(ctx context.Context, n int64) (int64, error) {
	if err := c.assertOpen(); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newMisuseError("cannot skip a negative number of records: %d", n)
	}

	var skipped int64
	for skipped < n {
		ok, err := c.Next(ctx)
		if err != nil {
			return skipped, err
		}
		if !ok {
			break
		}
		skipped++
	}
	return skipped, nil
}

// Limit caps the consumption of the result by n records counting from the
// current position and returns the absolute position of the last reachable
// record. Records beyond the limit are discarded and never become reachable.
// Limit(0) discards the rest of the result immediately, keeping the current
// record, if any, readable. Negative n is a misuse.
func (c *Cursor) Limit(n int64) (int64, error) {
	if err := c.assertOpen(); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newMisuseError("cannot limit the cursor by a negative number of records: %d", n)
	}

	if n == 0 {
		c.limit = c.pos
		c.pkr.discard()
	} else {
		c.limit = c.pos + n
	}
	return c.limit, nil
}

// First returns the first record of the result. The cursor must not be moved
// past the first record before the call: at position -1 First advances the
// cursor, at position 0 it returns the current record, any further position
// is an error. An empty result is reported by a NoSuchRecordError.
func (c *Cursor) First(ctx context.Context) (*api.Record, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}
	if c.pos >= 1 {
		return nil, newNoSuchRecordError("cannot retrieve the first record, the cursor has been moved already; " +
			"First() must not be mixed with Next(), Single(), List() or any other call that changes the position")
	}
	if c.pos == 0 {
		return c.current, nil
	}

	ok, err := c.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newNoSuchRecordError("cannot retrieve the first record, the result is empty")
	}
	return c.current, nil
}

// Single returns the one and only record of the result. It fails with a
// NoSuchRecordError if the result is empty or contains more than one record.
// In the latter case the extra record is not consumed, a following Next call
// obtains it.
func (c *Cursor) Single(ctx context.Context) (*api.Record, error) {
	r, err := c.First(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := c.pkr.hasNext(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, newNoSuchRecordError("expected a result with a single record, but it contains at least one more; " +
			"use First() if the number of records doesn't matter")
	}
	return r, nil
}

// Peek returns the record the following Next call would make current, without
// changing the cursor position. It fails with a NoSuchRecordError when there
// are no more records.
func (c *Cursor) Peek(ctx context.Context) (*api.Record, error) {
	if err := c.assertOpen(); err != nil {
		return nil, err
	}

	r, err := c.pkr.peek(ctx)
	if err == io.EOF {
		return nil, newNoSuchRecordError("cannot peek, there are no more records in the result")
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns all the records of the result and discards the cursor content,
// so the cursor is at the end afterwards. The operation is allowed for a
// fresh cursor or a cursor pointing at the first record only, retaining from
// the middle of the result is a misuse.
func (c *Cursor) List(ctx context.Context) ([]*api.Record, error) {
	res := make([]*api.Record, 0, 10)
	err := c.retain(ctx, func() error {
		res = append(res, c.current)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListF works like List, but it collects the results of applying mapFn to the
// cursor positioned on every record of the result
func (c *Cursor) ListF(ctx context.Context, mapFn MapF) ([]interface{}, error) {
	res := make([]interface{}, 0, 10)
	err := c.retain(ctx, func() error {
		v, err := mapFn(c)
		if err != nil {
			return err
		}
		res = append(res, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Summarize exhausts the rest of the result, releases its source and returns
// the summary of the query. The returned object is the same one the cursor
// was created with, so it could be nil.
func (c *Cursor) Summarize(ctx context.Context) (*api.Summary, error) {
	for {
		ok, err := c.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	c.pkr.discard()
	return c.summary, nil
}

// Close discards the rest of the result and releases its source. Every
// following operation except the pure metadata accessors fails with a
// MisuseError. Close itself must be called exactly once, the second call
// fails with a distinct MisuseError.
func (c *Cursor) Close() error {
	if !c.open {
		return newMisuseError("Close() has been called on the cursor already")
	}
	c.open = false
	return c.pkr.discard()
}

func (c *Cursor) assertOpen() error {
	if !c.open {
		return newMisuseError("the cursor is already closed")
	}
	return nil
}

// isEmpty reports whether the cursor has never pointed at a record and never will
func (c *Cursor) isEmpty(ctx context.Context) (bool, error) {
	if c.pos != -1 {
		return false, nil
	}
	ok, err := c.pkr.hasNext(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// retain implements the bulk consumption of the result (see List and ListF):
// it runs f for the first and every following record, then discards the
// source. An error from f aborts the walk immediately.
func (c *Cursor) retain(ctx context.Context, f func() error) error {
	if err := c.assertOpen(); err != nil {
		return err
	}

	empty, err := c.isEmpty(ctx)
	if err != nil {
		return err
	}
	if empty {
		return nil
	}

	startable := c.pos == 0
	if !startable && c.pos == -1 {
		ok, err := c.Next(ctx)
		if err != nil {
			return err
		}
		startable = ok
	}
	if !startable {
		return newMisuseError("cannot retain the records, the cursor doesn't point at the first record (currently at position %d)", c.pos)
	}

	for {
		if err := f(); err != nil {
			return err
		}
		ok, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	c.pkr.discard()
	return nil
}
