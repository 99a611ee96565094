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

// Package rql contains the parser and the condition evaluator of the record
// query language:
//
//	SELECT [field {, field}] FROM source [WHERE condition]
//	    [POSITION head|tail|<index>] [OFFSET n] [LIMIT n]
//
// The parser is used on both sides of the wire: a driver parses a query to
// surface syntax errors before anything is sent to the server, the server
// parses it to actually run the stream.
package rql

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

var (
	rqlLexer = lexer.Must(getRegexpDefinition(`(\s+)` +
		`|(?P<Keyword>(?i)SELECT|FROM|WHERE|POSITION|HEAD|TAIL|OFFSET|LIMIT|AND|OR|NOT|LIKE|CONTAINS|PREFIX|SUFFIX)` +
		`|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*)` +
		`|(?P<String>"([^\\"]|\\.)*"|'([^\\']|\\.)*')` +
		`|(?P<Operator><>|!=|<=|>=|[-+*/%,.=<>()])` +
		`|(?P<Value>[a-zA-Z0-9_\-\\/!@|#$%^&\*+~\.]+)`,
	))

	parser = participle.MustBuild(
		&Select{},
		participle.Lexer(rqlLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
	)

	parserExpr = participle.MustBuild(
		&Expression{},
		participle.Lexer(rqlLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
	)
)

// condition operations, which are not the plain comparisons
const (
	CMP_CONTAINS   = "CONTAINS"
	CMP_HAS_PREFIX = "PREFIX"
	CMP_HAS_SUFFIX = "SUFFIX"
	CMP_LIKE       = "LIKE"
)

type (
	// Int is the int64 which only captures non-negative decimals
	Int int64

	Select struct {
		All      bool        `"SELECT" (@"*"`
		Fields   []string    ` | @Ident ("," @Ident)* )?`
		From     string      `"FROM" (@String|@Value|@Ident)`
		Where    *Expression `("WHERE" @@)?`
		Position *Position   `("POSITION" @@)?`
		Offset   *Int        `("OFFSET" @Value)?`
		Limit    *Int        `("LIMIT" @Value)?`
	}

	Expression struct {
		Or []*OrCondition `@@ { "OR" @@ }`
	}

	OrCondition struct {
		And []*XCondition `@@ { "AND" @@ }`
	}

	XCondition struct {
		Not  bool        ` [@"NOT"] `
		Cond *Condition  `( @@`
		Expr *Expression `| "(" @@ ")")`
	}

	Condition struct {
		Operand string `  (@Ident)`
		Op      string ` (@("<"|">"|">="|"<="|"!="|"="|"CONTAINS"|"PREFIX"|"SUFFIX"|"LIKE"))`
		Value   string ` (@String|@Value|@Ident)`
	}

	Position struct {
		PosId string `(@"HEAD"|@"TAIL"|@String|@Value|@Ident)`
	}
)

func (i *Int) Capture(values []string) error {
	v, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("expecting a non-negative integer, but %d", v)
	}
	*i = Int(v)
	return nil
}

// Parse parses the rql text into its Select structure
func Parse(rql string) (*Select, error) {
	sel := &Select{}
	err := parser.ParseString(rql, sel)
	if err != nil {
		return nil, err
	}
	return sel, err
}

// ParseExpr parses the condition part only, `a = b AND c != d` for instance.
// The empty input produces the nil expression, which matches everything.
func ParseExpr(where string) (*Expression, error) {
	if len(where) == 0 {
		return nil, nil
	}

	exp := &Expression{}
	err := parserExpr.ParseString(where, exp)
	if err != nil {
		return nil, err
	}
	return exp, err
}
