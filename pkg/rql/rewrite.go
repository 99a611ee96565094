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
	"strings"

	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
)

// WithPosition returns the query text rewritten so it reads from the position
// pos. An existing POSITION clause is replaced, otherwise the clause is put
// before OFFSET or LIMIT, whichever comes first, or appended to the end of the
// query. The rewrite keeps the rest of the text intact, so saved positions can
// be applied to a query the way the user typed it.
func WithPosition(query, pos string) (string, error) {
	if _, err := Parse(query); err != nil {
		return "", err
	}

	toks, err := tokenize(query)
	if err != nil {
		return "", err
	}

	// in a parsable query the keywords POSITION, OFFSET and LIMIT may occur
	// as the tail clauses only (quoted values lex as String), so the first
	// one met is the place for the new clause
	res := ""
	kwType := rqlLexer.Symbols()["Keyword"]
	for i, t := range toks {
		if t.Type != kwType {
			continue
		}
		switch strings.ToUpper(t.Value) {
		case "POSITION":
			op := toks[i+1]
			res = query[:t.Pos.Offset] + "position " + pos + query[op.Pos.Offset+len(op.Value):]
		case "OFFSET", "LIMIT":
			res = query[:t.Pos.Offset] + "position " + pos + " " + query[t.Pos.Offset:]
		default:
			continue
		}
		break
	}
	if res == "" {
		res = strings.TrimRight(query, " \t") + " position " + pos
	}

	if _, err := Parse(res); err != nil {
		return "", errors.Wrapf(err, "could not apply the position %q to the query %q", pos, query)
	}
	return res, nil
}

// tokenize returns all the query tokens together with their byte offsets in
// the text
func tokenize(query string) ([]lexer.Token, error) {
	lx, err := rqlLexer.Lex(strings.NewReader(query))
	if err != nil {
		return nil, err
	}

	var res []lexer.Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.Type == lexer.EOF {
			return res, nil
		}
		res = append(res, t)
	}
}
