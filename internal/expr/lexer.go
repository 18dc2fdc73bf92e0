package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string // identifier name, punctuation or raw number text
	str  string // decoded string literal
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return strconv.Quote(t.str)
	}
	return "`" + t.text + "`"
}

// punctuators ordered longest first so the lexer is greedy.
var punctuators = []string{
	"===", "!==",
	"==", "!=", "<=", ">=", "&&", "||", "=>",
	"<", ">", "+", "-", "*", "/", "%", "!",
	".", ",", ":", "?", "(", ")", "[", "]", "{", "}",
}

// lexer turns expression text into tokens.
type lexer struct {
	input string
	pos   int
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", pos, fmt.Sprintf(format, args...))
}

func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	switch {
	case isIdentStart(r):
		l.pos += size
		for l.pos < len(l.input) {
			r, size = utf8.DecodeRuneInString(l.input[l.pos:])
			if !isIdentPart(r) {
				break
			}
			l.pos += size
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
	case r >= '0' && r <= '9', r == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.number()
	case r == '\'' || r == '"':
		return l.string(byte(r))
	case r == '`':
		return token{}, l.errorf(start, "template literals are not supported")
	}

	for _, p := range punctuators {
		if strings.HasPrefix(l.input[l.pos:], p) {
			l.pos += len(p)
			return token{kind: tokPunct, text: p, pos: start}, nil
		}
	}
	return token{}, l.errorf(start, "unexpected character %q", r)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return token{}, l.errorf(start, "malformed number %q", l.input[start:l.pos])
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) {
		if r, _ := utf8.DecodeRuneInString(l.input[l.pos:]); isIdentStart(r) {
			return token{}, l.errorf(start, "malformed number %q", l.input[start:l.pos+1])
		}
	}
	return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) string(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return token{}, l.errorf(start, "unterminated string")
		}
		c := l.input[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, text: l.input[start:l.pos], str: sb.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return token{}, l.errorf(start, "unterminated string")
			}
			esc := l.input[l.pos+1]
			l.pos += 2
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case 'u':
				if l.pos+4 > len(l.input) {
					return token{}, l.errorf(l.pos-2, "malformed unicode escape")
				}
				n, err := strconv.ParseUint(l.input[l.pos:l.pos+4], 16, 32)
				if err != nil {
					return token{}, l.errorf(l.pos-2, "malformed unicode escape")
				}
				sb.WriteRune(rune(n))
				l.pos += 4
			default:
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
}
