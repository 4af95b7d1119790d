package legend

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned (wrapped) for expressions that cannot be compiled
var ErrMalformed = errors.New("malformed expression")

// Matcher reports whether a pixel value satisfies an expression
type Matcher func(v float64) bool

// Comparison operators
const (
	OpEquals       = "=="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokValue
	tokOp
	tokAnd
	tokOr
	tokOpen
	tokClose
	tokEnd
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// Compile turns a legend expression into a matcher.
//
// A bare number matches that exact value ("4"). Comparisons name the
// pixel value as x on either side ("x >= 1", "5 > x") or leave it
// implied (">3", "!=0"). Comparisons combine with & or && and | or ||;
// & binds tighter than |, parentheses group.
func Compile(expr string) (Matcher, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", expr, err)
	}
	p := &parser{toks: toks}
	m, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", expr, err)
	}
	if p.peek().kind != tokEnd {
		return nil, fmt.Errorf("%q: unexpected %q: %w", expr, p.peek().text, ErrMalformed)
	}
	return m, nil
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, text: ")"})
			i++
		case c == '&' || c == '|':
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			n := 1
			if i+1 < len(s) && s[i+1] == c {
				n = 2
			}
			toks = append(toks, token{kind: kind, text: s[i : i+n]})
			i += n
		case c == 'x' || c == 'X':
			toks = append(toks, token{kind: tokValue, text: "x"})
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			n := 1
			if i+1 < len(s) && s[i+1] == '=' {
				n = 2
			}
			op := s[i : i+n]
			switch op {
			case "=":
				op = OpEquals
			case "!":
				return nil, fmt.Errorf("unexpected '!': %w", ErrMalformed)
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += n
		case isNumberStart(s, i):
			j := i + 1
			for j < len(s) && isNumberByte(s[j], s[j-1]) {
				j++
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q: %w", s[i:j], ErrMalformed)
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: v})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q: %w", string(c), ErrMalformed)
		}
	}
	return append(toks, token{kind: tokEnd, text: "end of expression"}), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberStart(s string, i int) bool {
	c := s[i]
	if isDigit(c) || c == '.' {
		return true
	}
	return (c == '-' || c == '+') && i+1 < len(s) && (isDigit(s[i+1]) || s[i+1] == '.')
}

func isNumberByte(c, prev byte) bool {
	if isDigit(c) || c == '.' || c == 'e' || c == 'E' {
		return true
	}
	return (c == '-' || c == '+') && (prev == 'e' || prev == 'E')
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEnd {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Matcher, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(v float64) bool { return l(v) || right(v) }
	}
	return left, nil
}

func (p *parser) parseAnd() (Matcher, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(v float64) bool { return l(v) && right(v) }
	}
	return left, nil
}

func (p *parser) parseTerm() (Matcher, error) {
	t := p.next()
	switch t.kind {
	case tokOpen:
		m, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokClose {
			return nil, fmt.Errorf("expected ')', got %q: %w", c.text, ErrMalformed)
		}
		return m, nil

	case tokNumber:
		// "5 > x" or a bare exact value
		if p.peek().kind != tokOp {
			return compare(OpEquals, t.num), nil
		}
		op := p.next()
		if x := p.next(); x.kind != tokValue {
			return nil, fmt.Errorf("expected x, got %q: %w", x.text, ErrMalformed)
		}
		return compare(mirror(op.text), t.num), nil

	case tokValue:
		op := p.next()
		if op.kind != tokOp {
			return nil, fmt.Errorf("expected operator after x, got %q: %w", op.text, ErrMalformed)
		}
		n := p.next()
		if n.kind != tokNumber {
			return nil, fmt.Errorf("expected number, got %q: %w", n.text, ErrMalformed)
		}
		return compare(op.text, n.num), nil

	case tokOp:
		n := p.next()
		if n.kind != tokNumber {
			return nil, fmt.Errorf("expected number, got %q: %w", n.text, ErrMalformed)
		}
		return compare(t.text, n.num), nil
	}
	return nil, fmt.Errorf("unexpected %q: %w", t.text, ErrMalformed)
}

// mirror flips an operator so the pixel value moves to the left side
func mirror(op string) string {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	}
	return op
}

func compare(op string, n float64) Matcher {
	switch op {
	case OpNotEqual:
		return func(v float64) bool { return v != n }
	case OpLess:
		return func(v float64) bool { return v < n }
	case OpLessEqual:
		return func(v float64) bool { return v <= n }
	case OpGreater:
		return func(v float64) bool { return v > n }
	case OpGreaterEqual:
		return func(v float64) bool { return v >= n }
	}
	return func(v float64) bool { return v == n }
}

// normalize trims an expression for comparison against entries filters
func normalize(expr string) string {
	return strings.TrimSpace(expr)
}
