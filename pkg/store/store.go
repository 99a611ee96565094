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

// Package store contains the in-memory record storage the embedded rdb
// server works on top of. A store holds named sources, every source is an
// append-only sequence of records with the fixed set of field names, which is
// settled by the first write to the source.
package store

import (
	"sync"

	"github.com/jrivets/log4g"
	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

type (
	// Store keeps the sources and their records. It is safe for concurrent
	// use: appends take the write lock, reads take the read one. Records are
	// never modified or removed once appended, so a reader may keep a record
	// reference as long as it needs it.
	Store struct {
		lock   sync.RWMutex
		logger log4g.Logger
		srcs   map[string]*source
	}

	source struct {
		keys []string
		recs []*api.Record
	}
)

// NewStore creates the new empty Store
func NewStore() *Store {
	s := new(Store)
	s.logger = log4g.GetLogger("store")
	s.srcs = make(map[string]*source)
	return s
}

// Append adds the records to the source with the name src. The first write
// settles the keys of the source, all the following writes must carry the
// same keys in the same order. The whole batch is either accepted or
// rejected. It returns the number of accepted records.
func (s *Store) Append(src string, keys []string, recs []*api.Record) (int, error) {
	if src == "" {
		return 0, errors.New("the source name cannot be empty")
	}
	if len(recs) == 0 {
		return 0, nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	sc, ok := s.srcs[src]
	if !ok {
		sc = &source{keys: keys}
		s.srcs[src] = sc
		s.logger.Debug("new source ", src, " with the keys ", keys)
	}

	if !sameKeys(sc.keys, keys) {
		return 0, errors.Errorf("the source %q has the keys %v, but the write carries %v", src, sc.keys, keys)
	}

	sc.recs = append(sc.recs, recs...)
	return len(recs), nil
}

// Keys returns the field names of the source, or nil if the source is unknown.
// The result must not be modified.
func (s *Store) Keys(src string) []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if sc, ok := s.srcs[src]; ok {
		return sc.keys
	}
	return nil
}

// Len returns the number of records the source holds at the moment
func (s *Store) Len(src string) int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if sc, ok := s.srcs[src]; ok {
		return len(sc.recs)
	}
	return 0
}

// At returns the record of the source at the absolute index idx. The second
// result is false when the index is behind the last record or the source is
// unknown.
func (s *Store) At(src string, idx int) (*api.Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	sc, ok := s.srcs[src]
	if !ok || idx < 0 || idx >= len(sc.recs) {
		return nil, false
	}
	return sc.recs[idx], true
}

func sameKeys(a, b []string) bool {
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
