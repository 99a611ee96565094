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
)

func TestWithPosition(t *testing.T) {
	testRewrite(t, "select * from logs", "15", "select * from logs position 15")
	testRewrite(t, "select * from logs  ", "3", "select * from logs position 3")
	testRewrite(t, "select msg from logs limit 10", "15", "select msg from logs position 15 limit 10")
	testRewrite(t, "select from logs offset 2 limit 3", "head", "select from logs position head offset 2 limit 3")
	testRewrite(t, "SELECT FROM logs LIMIT 5", "head", "SELECT FROM logs position head LIMIT 5")
	testRewrite(t, "select from logs position head offset 2", "15", "select from logs position 15 offset 2")
	testRewrite(t, "select from logs position 'tail' limit 1", "15", "select from logs position 15 limit 1")
	testRewrite(t, "select from logs where msg contains 'limit' limit 3", "9",
		"select from logs where msg contains 'limit' position 9 limit 3")
	testRewrite(t, "select from logs where msg = 'position x' ", "tail",
		"select from logs where msg = 'position x' position tail")

	if _, err := WithPosition("selekt * from logs", "1"); err == nil {
		t.Fatal("expecting an error for the broken query, but got nil")
	}
	if _, err := WithPosition("select * from logs", "'"); err == nil {
		t.Fatal("expecting an error for the broken position, but got nil")
	}
}

func testRewrite(t *testing.T, query, pos, expected string) {
	res, err := WithPosition(query, pos)
	if err != nil {
		t.Fatal("query=\"", query, "\" unexpected err=", err)
	}
	if res != expected {
		t.Fatal("query=\"", query, "\" expecting \"", expected, "\", but got \"", res, "\"")
	}

	s, err := Parse(res)
	if err != nil {
		t.Fatal("the rewritten query \"", res, "\" must be parsable, but err=", err)
	}
	if s.Position == nil || s.Position.PosId != pos {
		t.Fatal("the rewritten query \"", res, "\" must read from ", pos, ", but the position is ", s.Position)
	}
}
