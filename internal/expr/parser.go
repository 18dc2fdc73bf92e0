package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/linx/internal/errs"
)

// ArgvName is the synthetic identifier through which inline expressions
// reference captured values: the i-th value spliced into the text becomes
// $argv[i].
const ArgvName = "$argv"

// binding powers, loosest first.
const (
	precLowest = iota
	precConditional
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
)

var binaryPrec = map[string]int{
	"||":  precOr,
	"&&":  precAnd,
	"==":  precEquality,
	"!=":  precEquality,
	"===": precEquality,
	"!==": precEquality,
	"<":   precRelational,
	"<=":  precRelational,
	">":   precRelational,
	">=":  precRelational,
	"+":   precAdditive,
	"-":   precAdditive,
	"*":   precMultiplicative,
	"/":   precMultiplicative,
	"%":   precMultiplicative,
}

// Parse parses inline expression text into a tree.
// Malformed text is reported as a parse error.
func Parse(text string) (Node, error) {
	p := &parser{src: text}
	toks, err := (&lexer{input: text}).tokenize()
	if err != nil {
		return nil, p.wrap(err)
	}
	p.toks = toks
	n, err := p.expression(precLowest)
	if err != nil {
		return nil, p.wrap(err)
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.wrap(p.errorf(tok, "unexpected %s", tok))
	}
	return n, nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) wrap(err error) error {
	return errs.Syntax("Invalid expression `%s`: %v", strings.TrimSpace(p.src), err)
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", tok.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == text
}

func (p *parser) expect(text string) (token, error) {
	tok := p.advance()
	if tok.kind != tokPunct || tok.text != text {
		return tok, p.errorf(tok, "expecting `%s`, got %s", text, tok)
	}
	return tok, nil
}

func (p *parser) expression(minPrec int) (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return left, nil
		}
		if tok.text == "?" {
			if minPrec >= precConditional {
				return left, nil
			}
			p.advance()
			then, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
			els, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			left = Conditional{Pos: left.Offset(), Test: left, Then: then, Else: els}
			continue
		}
		prec, ok := binaryPrec[tok.text]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.expression(prec)
		if err != nil {
			return nil, err
		}
		left = Binary{Pos: tok.pos, Op: tok.text, Left: left, Right: right}
	}
}

func (p *parser) unary() (Node, error) {
	tok := p.peek()
	if tok.kind == tokPunct && (tok.text == "!" || tok.text == "-" || tok.text == "+") {
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Unary{Pos: tok.pos, Op: tok.text, X: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return n, nil
		}
		switch tok.text {
		case ".":
			p.advance()
			name := p.advance()
			if name.kind != tokIdent {
				return nil, p.errorf(name, "expecting property name, got %s", name)
			}
			n = Member{Pos: tok.pos, Object: n, Property: name.text}
		case "[":
			p.advance()
			idx, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			if id, ok := n.(Ident); ok && id.Name == ArgvName {
				lit, ok := idx.(Literal)
				i, isInt := lit.Value.(int64)
				if !ok || !isInt || i < 0 {
					return nil, p.errorf(tok, "captured values must be indexed by a constant")
				}
				n = Arg{Pos: id.Pos, Index: int(i)}
				continue
			}
			n = Index{Pos: tok.pos, Object: n, Index: idx}
		case "(":
			return nil, p.errorf(tok, "function calls are not supported")
		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (Node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		if i, err := strconv.ParseInt(tok.text, 10, 64); err == nil {
			return Literal{Pos: tok.pos, Value: i}, nil
		}
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(tok, "malformed number %s", tok)
		}
		return Literal{Pos: tok.pos, Value: f}, nil
	case tokString:
		return Literal{Pos: tok.pos, Value: tok.str}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return Literal{Pos: tok.pos, Value: true}, nil
		case "false":
			return Literal{Pos: tok.pos, Value: false}, nil
		case "null", "undefined":
			return Literal{Pos: tok.pos, Value: nil}, nil
		}
		return Ident{Pos: tok.pos, Name: tok.text}, nil
	case tokPunct:
		switch tok.text {
		case "(":
			n, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		case "{":
			return p.object(tok)
		case "[":
			return p.array(tok)
		}
	}
	return nil, p.errorf(tok, "unexpected %s", tok)
}

func (p *parser) object(open token) (Node, error) {
	obj := Object{Pos: open.pos}
	for !p.isPunct("}") {
		key := p.advance()
		var name string
		switch key.kind {
		case tokIdent:
			name = key.text
		case tokString:
			name = key.str
		case tokNumber:
			name = key.text
		default:
			return nil, p.errorf(key, "expecting property key, got %s", key)
		}
		if key.kind == tokIdent && (p.isPunct(",") || p.isPunct("}")) {
			obj.Props = append(obj.Props, Property{Key: name, Value: Ident{Pos: key.pos, Name: name}, Shorthand: true})
		} else {
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
			v, err := p.expression(precLowest)
			if err != nil {
				return nil, err
			}
			obj.Props = append(obj.Props, Property{Key: name, Value: v})
		}
		if !p.isPunct("}") {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	p.advance()
	return obj, nil
}

func (p *parser) array(open token) (Node, error) {
	arr := Array{Pos: open.pos}
	for !p.isPunct("]") {
		e, err := p.expression(precLowest)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, e)
		if !p.isPunct("]") {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	p.advance()
	return arr, nil
}
