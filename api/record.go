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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Record struct describes one record of a source - an ordered, fixed-arity
	// mapping of field names to field values. Records are immutable once
	// constructed, all the records of one query result share the same keys
	// slice, so the field order is the same within the whole result.
	//
	// A field value is one of: nil, bool, int64, float64, string or []byte.
	Record struct {
		keys []string
		vals []interface{}
	}
)

// NewRecord creates a new Record from the ordered field names and their values.
// The record borrows both slices, so the caller must not modify them afterwards.
// It returns an error if the arity of vals doesn't match the arity of keys.
func NewRecord(keys []string, vals []interface{}) (*Record, error) {
	if len(keys) != len(vals) {
		return nil, errors.Errorf("record arity mismatch: %d keys, but %d values", len(keys), len(vals))
	}
	return &Record{keys: keys, vals: vals}, nil
}

// Keys returns the ordered field names of the record. The result must not
// be modified by the caller.
func (r *Record) Keys() []string {
	return r.keys
}

// Len returns the number of fields in the record
func (r *Record) Len() int {
	return len(r.keys)
}

// Index returns the position of the field with the name provided, or -1 if
// the record doesn't contain the field
func (r *Record) Index(name string) int {
	for i, k := range r.keys {
		if k == name {
			return i
		}
	}
	return -1
}

// Get returns the value of the field with the name provided. The second
// result is false if the record doesn't contain the field.
func (r *Record) Get(name string) (interface{}, bool) {
	idx := r.Index(name)
	if idx < 0 {
		return nil, false
	}
	return r.vals[idx], true
}

// At returns the value of the field at the position idx, or nil if idx is
// out of the record bounds
func (r *Record) At(idx int) interface{} {
	if idx < 0 || idx >= len(r.vals) {
		return nil
	}
	return r.vals[idx]
}

// String returns the record in the logfmt-like form `key1=value1 key2=value2 ...`
func (r *Record) String() string {
	var sb strings.Builder
	for i, k := range r.keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		switch v := r.vals[i].(type) {
		case nil:
			sb.WriteString("null")
		case string:
			fmt.Fprintf(&sb, "%q", v)
		case []byte:
			fmt.Fprintf(&sb, "0x%x", v)
		default:
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	return sb.String()
}
