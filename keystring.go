package mkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseKey parses the syntax produced by Key.String: a parenthesized,
// comma-separated list of decimal integers and Go-quoted strings, like
// ("users",42,"email"). A single unparenthesized subscript is accepted too.
// Quoted strings always become Text, even when they look numeric. "()" is
// the zero Key.
func ParseKey(s string) (Key, error) {
	p := keyParser{src: s}
	p.skipSpace()
	var comps []Scalar
	if p.peek() == '(' {
		p.pos++
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			p.skipSpace()
			if p.pos < len(p.src) {
				return Key{}, p.errorf("unexpected trailing text")
			}
			return Key{}, nil
		}
		for {
			p.skipSpace()
			sc, err := p.scalar()
			if err != nil {
				return Key{}, err
			}
			comps = append(comps, sc)
			p.skipSpace()
			c := p.peek()
			p.pos++
			if c == ')' {
				break
			} else if c != ',' {
				return Key{}, p.errorf("expected , or )")
			}
		}
	} else {
		sc, err := p.scalar()
		if err != nil {
			return Key{}, err
		}
		comps = append(comps, sc)
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Key{}, p.errorf("unexpected trailing text")
	}
	return makeKey(comps), nil
}

// ParseScalar parses a single subscript in the syntax of Scalar.String.
func ParseScalar(s string) (Scalar, error) {
	p := keyParser{src: s}
	p.skipSpace()
	sc, err := p.scalar()
	if err != nil {
		return Scalar{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Scalar{}, p.errorf("unexpected trailing text")
	}
	return sc, nil
}

type keyParser struct {
	src string
	pos int
}

func (p *keyParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *keyParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *keyParser) scalar() (Scalar, error) {
	switch c := p.peek(); {
	case c == '"' || c == '`':
		lit, err := strconv.QuotedPrefix(p.src[p.pos:])
		if err != nil {
			return Scalar{}, p.errorf("invalid string literal")
		}
		str, err := strconv.Unquote(lit)
		if err != nil {
			return Scalar{}, p.errorf("invalid string literal")
		}
		p.pos += len(lit)
		return Text(str), nil
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		lit := p.src[start:p.pos]
		n, err := strconv.ParseInt(lit, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return Scalar{}, &ValueError{lit, ErrOverflow, fmt.Sprintf("integer %s", lit)}
		} else if err != nil {
			p.pos = start
			return Scalar{}, p.errorf("invalid integer %q", lit)
		}
		return Int(n), nil
	default:
		return Scalar{}, p.errorf("expected integer or quoted string")
	}
}

func (p *keyParser) errorf(format string, args ...any) error {
	return fmt.Errorf("mkey: invalid key %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}
