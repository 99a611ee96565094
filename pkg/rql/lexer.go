// The code of this file is based on github.com/alecthomas/participle/lexer
// and modified to choose the longest regexp match instead of the first one
package rql

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"unicode/utf8"

	"github.com/alecthomas/participle/lexer"
)

var eolBytes = []byte("\n")

type (
	longestMatchDef struct {
		re      *regexp.Regexp
		symbols map[string]rune
	}

	longestMatchLexer struct {
		pos   lexer.Position
		b     []byte
		re    *regexp.Regexp
		names []string
	}
)

// getRegexpDefinition creates a lexer definition from the regular expression
// pattern. Each named sub-expression matches a token of its type, anonymous
// sub-expressions are matched and dropped (whitespace for instance). Unlike
// the stock participle definition the scanning prefers the longest match, so
// keywords, identifiers and values with common prefixes lex predictably.
func getRegexpDefinition(pattern string) (lexer.Definition, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	symbols := map[string]rune{
		"EOF": lexer.EOF,
	}
	for i, sym := range re.SubexpNames()[1:] {
		if sym != "" {
			symbols[sym] = lexer.EOF - 1 - rune(i)
		}
	}

	re.Longest()
	return &longestMatchDef{re: re, symbols: symbols}, nil
}

func (d *longestMatchDef) Lex(r io.Reader) (lexer.Lexer, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &longestMatchLexer{
		pos: lexer.Position{
			Filename: lexer.NameOfReader(r),
			Line:     1,
			Column:   1,
		},
		b:     b,
		re:    d.re,
		names: d.re.SubexpNames(),
	}, nil
}

func (d *longestMatchDef) Symbols() map[string]rune {
	return d.symbols
}

func (r *longestMatchLexer) Next() (lexer.Token, error) {
nextToken:
	for len(r.b) != 0 {
		matches := r.re.FindSubmatchIndex(r.b)
		if matches == nil || matches[0] != 0 {
			rn, _ := utf8.DecodeRune(r.b)
			return lexer.Token{}, fmt.Errorf("invalid token %q, pos=%s", rn, r.pos)
		}
		match := r.b[:matches[1]]
		token := lexer.Token{
			Pos:   r.pos,
			Value: string(match),
		}

		// update the lexer position
		r.pos.Offset += matches[1]
		lines := bytes.Count(match, eolBytes)
		r.pos.Line += lines
		if lines == 0 {
			r.pos.Column += utf8.RuneCount(match)
		} else {
			r.pos.Column = utf8.RuneCount(match[bytes.LastIndex(match, eolBytes):])
		}
		r.b = r.b[matches[1]:]

		// assign the token type. Unnamed groups mean the token is dropped.
		for i := 2; i < len(matches); i += 2 {
			if matches[i] != -1 {
				if r.names[i/2] == "" {
					continue nextToken
				}
				token.Type = lexer.EOF - rune(i/2)
				break
			}
		}

		return token, nil
	}

	return lexer.EOFToken(r.pos), nil
}
