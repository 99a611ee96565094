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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordArity(t *testing.T) {
	_, err := NewRecord([]string{"a", "b"}, []interface{}{int64(1)})
	assert.NotNil(t, err)

	r, err := NewRecord([]string{"a", "b"}, []interface{}{int64(1), "two"})
	assert.Nil(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRecordAccessors(t *testing.T) {
	r, err := NewRecord([]string{"ts", "msg", "ok"}, []interface{}{int64(123), "hello", true})
	assert.Nil(t, err)

	assert.Equal(t, []string{"ts", "msg", "ok"}, r.Keys())
	assert.Equal(t, 1, r.Index("msg"))
	assert.Equal(t, -1, r.Index("nope"))

	v, ok := r.Get("ok")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = r.Get("nope")
	assert.False(t, ok)

	assert.Equal(t, int64(123), r.At(0))
	assert.Nil(t, r.At(3))
	assert.Nil(t, r.At(-1))
}

func TestRecordString(t *testing.T) {
	r, err := NewRecord([]string{"msg", "n", "raw", "none"},
		[]interface{}{"hi there", int64(5), []byte{0xde, 0xad}, nil})
	assert.Nil(t, err)
	assert.Equal(t, `msg="hi there" n=5 raw=0xdead none=null`, r.String())
}
