package jsonpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every compile error.
var ErrSyntax = errors.New("invalid path expression")

type selectorKind uint8

const (
	selectName selectorKind = iota
	selectWildcard
	selectIndex
	selectSlice
)

type selector struct {
	kind     selectorKind
	name     string
	index    int
	start    int
	end      int
	hasStart bool
	hasEnd   bool
}

type segment struct {
	descendant bool
	selectors  []selector
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w %q at offset %d: %s", ErrSyntax, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) done() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) skipSpaces() {
	for !p.done() && p.peek() == ' ' {
		p.pos++
	}
}

func parse(expr string) ([]segment, error) {
	p := &parser{src: strings.TrimSpace(expr)}
	if p.done() {
		return nil, p.errorf("empty expression")
	}

	var segments []segment
	switch p.peek() {
	case '$':
		p.pos++
	case '.', '[':
	default:
		// Bare names are relative to the root: "user.name" is "$.user.name".
		seg, err := p.parseDotted(false)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	for !p.done() {
		seg, err := p.parseSegment()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (p *parser) parseSegment() (segment, error) {
	switch p.peek() {
	case '[':
		sels, err := p.parseBracket()
		if err != nil {
			return segment{}, err
		}
		return segment{selectors: sels}, nil
	case '.':
		p.pos++
		if !p.done() && p.peek() == '.' {
			p.pos++
			if p.done() {
				return segment{}, p.errorf("descendant segment needs a selector")
			}
			if p.peek() == '[' {
				sels, err := p.parseBracket()
				if err != nil {
					return segment{}, err
				}
				return segment{descendant: true, selectors: sels}, nil
			}
			return p.parseDotted(true)
		}
		return p.parseDotted(false)
	default:
		return segment{}, p.errorf("unexpected character %q", p.peek())
	}
}

// parseDotted reads a member name or wildcard following a dot.
func (p *parser) parseDotted(descendant bool) (segment, error) {
	if p.done() {
		return segment{}, p.errorf("expected member name")
	}
	if p.peek() == '*' {
		p.pos++
		return segment{descendant: descendant, selectors: []selector{{kind: selectWildcard}}}, nil
	}

	start := p.pos
	for !p.done() && p.peek() != '.' && p.peek() != '[' {
		p.pos++
	}
	name := p.src[start:p.pos]
	if name == "" {
		return segment{}, p.errorf("expected member name")
	}
	if strings.ContainsAny(name, "]'\"") {
		return segment{}, p.errorf("invalid member name %q", name)
	}
	return segment{descendant: descendant, selectors: []selector{{kind: selectName, name: name}}}, nil
}

func (p *parser) parseBracket() ([]selector, error) {
	p.pos++ // [
	var sels []selector
	for {
		p.skipSpaces()
		if p.done() {
			return nil, p.errorf("unterminated bracket")
		}
		sel, err := p.parseBracketItem()
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)

		p.skipSpaces()
		if p.done() {
			return nil, p.errorf("unterminated bracket")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return sels, nil
		default:
			return nil, p.errorf("unexpected character %q in brackets", p.peek())
		}
	}
}

func (p *parser) parseBracketItem() (selector, error) {
	switch c := p.peek(); {
	case c == '*':
		p.pos++
		return selector{kind: selectWildcard}, nil
	case c == '\'' || c == '"':
		name, err := p.parseQuoted(c)
		if err != nil {
			return selector{}, err
		}
		return selector{kind: selectName, name: name}, nil
	case c == '-' || c == ':' || (c >= '0' && c <= '9'):
		return p.parseIndexOrSlice()
	default:
		return selector{}, p.errorf("unexpected character %q in brackets", c)
	}
}

func (p *parser) parseQuoted(quote byte) (string, error) {
	p.pos++
	var b strings.Builder
	for !p.done() {
		c := p.peek()
		switch {
		case c == '\\':
			p.pos++
			if p.done() {
				return "", p.errorf("unterminated escape")
			}
			b.WriteByte(p.peek())
			p.pos++
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) parseIndexOrSlice() (selector, error) {
	first, hasFirst, err := p.parseInt()
	if err != nil {
		return selector{}, err
	}
	p.skipSpaces()
	if p.done() || p.peek() != ':' {
		if !hasFirst {
			return selector{}, p.errorf("expected index")
		}
		return selector{kind: selectIndex, index: first}, nil
	}

	p.pos++ // :
	p.skipSpaces()
	second, hasSecond, err := p.parseInt()
	if err != nil {
		return selector{}, err
	}
	return selector{
		kind:     selectSlice,
		start:    first,
		hasStart: hasFirst,
		end:      second,
		hasEnd:   hasSecond,
	}, nil
}

func (p *parser) parseInt() (int, bool, error) {
	start := p.pos
	if !p.done() && p.peek() == '-' {
		p.pos++
	}
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	text := p.src[start:p.pos]
	if text == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false, p.errorf("invalid index %q", text)
	}
	return n, true, nil
}
