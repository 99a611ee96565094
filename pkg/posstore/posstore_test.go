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

package posstore

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFileName(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "posstoretest")
	if err != nil {
		t.Fatal("could not create the temp dir err=", err)
	}
	return path.Join(dir, "pos.json"), func() {
		_ = os.RemoveAll(dir)
	}
}

func TestSaveLoad(t *testing.T) {
	fn, cleanup := testFileName(t)
	defer cleanup()

	ps, err := Open(fn)
	assert.NoError(t, err)
	assert.Equal(t, "", ps.Get("select * from logs"))

	ps.Set("select * from logs", "42")
	ps.Set("select * from metrics", "7")
	assert.Equal(t, "42", ps.Get("select * from logs"))
	assert.Equal(t, 2, len(ps.Queries()))
	assert.NoError(t, ps.Close())

	// the positions survive the reopen
	ps, err = Open(fn)
	assert.NoError(t, err)
	assert.Equal(t, "42", ps.Get("select * from logs"))
	assert.Equal(t, "7", ps.Get("select * from metrics"))
	assert.NoError(t, ps.Close())
}

func TestSetEmptyRemoves(t *testing.T) {
	fn, cleanup := testFileName(t)
	defer cleanup()

	ps, err := Open(fn)
	assert.NoError(t, err)
	ps.Set("q1", "10")
	ps.Set("q1", "")
	assert.Equal(t, "", ps.Get("q1"))
	assert.Equal(t, 0, len(ps.Queries()))
	assert.NoError(t, ps.Close())
}

func TestLockHeld(t *testing.T) {
	fn, cleanup := testFileName(t)
	defer cleanup()

	ps, err := Open(fn)
	assert.NoError(t, err)

	_, err = Open(fn)
	assert.Error(t, err)

	// the lock goes away with Close
	assert.NoError(t, ps.Close())
	ps, err = Open(fn)
	assert.NoError(t, err)
	assert.NoError(t, ps.Close())
}

func TestBadContent(t *testing.T) {
	fn, cleanup := testFileName(t)
	defer cleanup()

	err := ioutil.WriteFile(fn, []byte("not a json"), 0640)
	assert.NoError(t, err)

	_, err = Open(fn)
	assert.Error(t, err)
}
