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

// Package posstore persists the last read positions of queries between the
// process runs, so an interrupted result walk could be resumed later from the
// place it stopped.
package posstore

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/gofrs/flock"
	"github.com/jrivets/log4g"
	"github.com/pkg/errors"
)

type (
	// Store keeps the query to position mapping backed by a JSON file. The
	// file is guarded by the advisory lock, so a concurrent process gets an
	// error from Open instead of silently clobbering the positions.
	Store struct {
		fileName string
		fl       *flock.Flock
		logger   log4g.Logger

		lock sync.Mutex
		poss map[string]string
	}
)

// Open reads the position file fileName, creating it when it doesn't exist
// yet, and locks it for the calling process. The store must be closed by
// Close() when it is not needed anymore.
func Open(fileName string) (*Store, error) {
	ps := new(Store)
	ps.fileName = fileName
	ps.logger = log4g.GetLogger("posstore").WithId("[" + fileName + "]").(log4g.Logger)
	ps.fl = flock.New(fileName)

	ok, err := ps.fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "could not acquire the lock for %s", fileName)
	}
	if !ok {
		return nil, errors.Errorf("the position file %s is held by another process", fileName)
	}

	if err = ps.load(); err != nil {
		_ = ps.fl.Unlock()
		return nil, err
	}
	return ps, nil
}

// Get returns the saved position for the query, or the empty string when
// nothing was saved for it
func (ps *Store) Get(query string) string {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.poss[query]
}

// Set places the position of the query into the store. The empty pos removes
// the record. The change is persisted by Save() or Close().
func (ps *Store) Set(query, pos string) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if pos == "" {
		delete(ps.poss, query)
		return
	}
	ps.poss[query] = pos
}

// Queries returns the queries which have a saved position
func (ps *Store) Queries() []string {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	res := make([]string, 0, len(ps.poss))
	for q := range ps.poss {
		res = append(res, q)
	}
	return res
}

// Save persists the positions into the file
func (ps *Store) Save() error {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	data, err := json.Marshal(ps.poss)
	if err != nil {
		return errors.Wrapf(err, "could not marshal the positions %v", ps.poss)
	}

	err = ioutil.WriteFile(ps.fileName, data, 0640)
	if err == nil {
		ps.logger.Debug("Saved ", len(ps.poss), " position(s)")
	}
	return err
}

// Close persists the positions and releases the file lock
func (ps *Store) Close() error {
	err := ps.Save()
	if err1 := ps.fl.Unlock(); err == nil {
		err = err1
	}
	ps.logger.Debug("Closed")
	return err
}

func (ps *Store) String() string {
	return fmt.Sprintf("[file:%v]", ps.fileName)
}

func (ps *Store) load() error {
	data, err := ioutil.ReadFile(ps.fileName)
	if err != nil {
		return errors.Wrapf(err, "could not read the position file %s", ps.fileName)
	}

	ps.poss = make(map[string]string)
	if len(data) > 0 {
		if err = json.Unmarshal(data, &ps.poss); err != nil {
			return errors.Wrapf(err, "cannot unmarshal the positions from %s", ps.fileName)
		}
	}
	ps.logger.Debug("Loaded ", len(ps.poss), " position(s)")
	return nil
}
