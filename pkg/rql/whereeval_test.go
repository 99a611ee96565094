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

package rql

import (
	"testing"

	"github.com/logrange/rdb/api"
)

func getWhereFunc(t *testing.T, exp string) WhereFunc {
	e, err := ParseExpr(exp)
	if err != nil {
		t.Fatal("The expression '", exp, "' must be compiled, but err=", err)
	}

	res, err := BuildWhereFunc(e)
	if err != nil {
		t.Fatal("the expression '", exp, "' must be evaluated no problem, but err=", err)
	}

	return res
}

func testWhereGeneral(t *testing.T, exp string, r *api.Record, expRes bool) {
	wf := getWhereFunc(t, exp)
	if wf(r) != expRes {
		t.Fatal("Expected ", expRes, " for '", exp, "' expression, but got ", !expRes)
	}
}

func TestWhereGeneral(t *testing.T) {
	r, err := api.NewRecord(
		[]string{"name", "size", "ratio", "ok", "data", "note"},
		[]interface{}{"aaaabbbb", int64(123), 0.5, true, []byte("raw"), nil},
	)
	if err != nil {
		t.Fatal("could not build the record err=", err)
	}

	testWhereGeneral(t, "name like \"aaa*\"", r, true)
	testWhereGeneral(t, "name like \"AAA*\"", r, false)
	testWhereGeneral(t, "name contains ab", r, true)
	testWhereGeneral(t, "name prefix aa", r, true)
	testWhereGeneral(t, "name prefix ab", r, false)
	testWhereGeneral(t, "name suffix ab", r, false)
	testWhereGeneral(t, "name suffix bb", r, true)
	testWhereGeneral(t, "size <= 123 and name suffix bb", r, true)
	testWhereGeneral(t, "size > 123 ", r, false)
	testWhereGeneral(t, "size < 123 and name suffix bb", r, false)
	testWhereGeneral(t, "size < 123 or name suffix bb", r, true)
	testWhereGeneral(t, "size != 122", r, true)
	testWhereGeneral(t, "size > 122.5", r, true)
	testWhereGeneral(t, "ratio = 0.5", r, true)
	testWhereGeneral(t, "ratio >= 1", r, false)
	testWhereGeneral(t, "ok = true", r, true)
	testWhereGeneral(t, "ok != false", r, true)
	testWhereGeneral(t, "data = raw", r, true)
	testWhereGeneral(t, "data contains aw", r, true)
	testWhereGeneral(t, "note = null", r, true)
	testWhereGeneral(t, "note != null", r, false)
	testWhereGeneral(t, "note < abc", r, false)
	testWhereGeneral(t, "unknown = aaa", r, false)
	testWhereGeneral(t, "unknown != aaa", r, false)
	testWhereGeneral(t, "not unknown != aaa", r, true)
	testWhereGeneral(t, "name = aaaabbbb and (size = 123 or size = 124)", r, true)
	testWhereGeneral(t, "not (name = aaaabbbb and size = 124)", r, true)
}

func TestWherePositive(t *testing.T) {
	res, err := BuildWhereFunc(nil)
	if err != nil {
		t.Fatal("Unexpected err=", err)
	}

	if !res(nil) {
		t.Fatal("Must be true")
	}
}

func TestWhereBadPattern(t *testing.T) {
	e, err := ParseExpr("name like 'a[b'")
	if err != nil {
		t.Fatal("the expression must be parsed, err=", err)
	}

	if _, err = BuildWhereFunc(e); err == nil {
		t.Fatal("expecting the bad pattern error, but got nil")
	}
}
