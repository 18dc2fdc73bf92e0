package query

import (
	"regexp"
	"strings"

	"github.com/roach88/linx/internal/errs"
	"github.com/roach88/linx/internal/expr"
)

// keywords end an inline expression. Matching is whole-word and
// case-insensitive.
var keywords = []string{
	"from", "where", "select", "join", "order", "group", "by", "into",
	"ascending", "descending", "equals", "on", "in", "let",
}

var (
	keywordStop = regexp.MustCompile(`(?i)^(\s*(.*?))(?:(?:\s|^)(` + strings.Join(keywords, "|") + `)(?:\s|$))`)
	commaStop   = regexp.MustCompile(`^(\s*([^,]*))`)
	wordRe      = regexp.MustCompile(`^(\w+)\s*`)
)

type valueMode int

const (
	modeDefault valueMode = iota
	// modeSimple also stops at commas (order-by items).
	modeSimple
	// modeExternal requires a value slot (join sources).
	modeExternal
)

// reader is a cursor over alternating fragments and value slots: value i
// sits between fragment i and fragment i+1.
type reader struct {
	parts []string
	args  []any
	part  int
	pos   int
}

func newReader(fragments []string, values []any) *reader {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = strings.NewReplacer("\r", " ", "\n", " ").Replace(f)
	}
	return &reader{parts: parts, args: values}
}

// errorf reports a parse error at the cursor.
func (r *reader) errorf(format string, args ...any) error {
	return errs.Parse(r.indicator(), format, args...)
}

func (r *reader) indicator() string {
	if r.part >= len(r.parts) {
		return errs.EndOfQuery
	}
	p := r.parts[r.part]
	return p[:r.pos] + "<^>" + p[r.pos:]
}

func (r *reader) rest() string {
	if r.part >= len(r.parts) {
		return ""
	}
	return r.parts[r.part][r.pos:]
}

// trim skips whitespace. A blank remainder is left in place when a value
// slot follows, and skipped past when this is the last fragment.
func (r *reader) trim() {
	if r.part >= len(r.parts) {
		return
	}
	rest := r.rest()
	if strings.TrimSpace(rest) == "" {
		if r.part >= len(r.args) {
			r.part++
			r.pos = 0
		}
		return
	}
	r.pos += len(rest) - len(strings.TrimLeft(rest, " \t\f\v"))
}

func (r *reader) ended() bool {
	r.trim()
	return r.part >= len(r.parts)
}

func (r *reader) peekWord() string {
	r.trim()
	if m := wordRe.FindStringSubmatch(r.rest()); m != nil {
		return m[1]
	}
	return ""
}

func (r *reader) nextWord() (string, error) {
	r.trim()
	m := wordRe.FindStringSubmatch(r.rest())
	if m == nil {
		return "", r.errorf("Expecting key word")
	}
	r.pos += len(m[0])
	return m[1], nil
}

// isWord consumes the next word if it is one of words.
func (r *reader) isWord(words ...string) (string, bool) {
	w := r.peekWord()
	for _, candidate := range words {
		if w == candidate {
			_, _ = r.nextWord()
			return w, true
		}
	}
	return "", false
}

func (r *reader) expect(words ...string) error {
	if _, ok := r.isWord(words...); !ok {
		return r.errorf("Expecting %s", strings.Join(words, " or "))
	}
	return nil
}

func (r *reader) isRaw(raw string) bool {
	r.trim()
	if !strings.HasPrefix(r.rest(), raw) {
		return false
	}
	r.pos += len(raw)
	return true
}

func (r *reader) expectRaw(raw string) error {
	if !r.isRaw(raw) {
		return r.errorf("Expecting %s", raw)
	}
	return nil
}

// nextValue reads a clause argument. A value slot with no text before it
// is returned as is. Otherwise text is accumulated, across value slots,
// up to the next keyword (or comma in modeSimple) and returned as an
// *expr.Inline.
func (r *reader) nextValue(mode valueMode) (any, error) {
	r.trim()
	if r.part >= len(r.parts) {
		return nil, r.errorf("Expecting value")
	}
	next := r.rest()
	if strings.TrimSpace(next) == "" {
		if r.part >= len(r.args) {
			return nil, r.errorf("Expecting value")
		}
		v := r.args[r.part]
		r.part++
		r.pos = 0
		return v, nil
	}
	if mode == modeExternal {
		return nil, r.errorf("Expecting external value: ${...}")
	}

	iv := &expr.Inline{}
	for {
		text, consumed, stopped := scanValue(next, mode)
		if stopped {
			iv.Strings = append(iv.Strings, text)
			r.pos += consumed
			break
		}
		iv.Strings = append(iv.Strings, strings.TrimLeft(next, " \t"))
		if r.part < len(r.args) {
			iv.Args = append(iv.Args, r.args[r.part])
		}
		r.part++
		r.pos = 0
		if r.ended() {
			break
		}
		next = r.rest()
	}
	return iv, nil
}

// scanValue finds the end of an inline value within one fragment. It
// returns the value text, the number of bytes to consume, and whether a
// terminator (keyword or, in modeSimple, comma) was found.
func scanValue(s string, mode valueMode) (string, int, bool) {
	if mode == modeSimple {
		if c := commaStop.FindStringSubmatch(s); len(c[0]) < len(s) {
			// "x descending, y": the item may still end on a keyword.
			if kw := keywordStop.FindStringSubmatch(c[1]); kw != nil {
				return kw[2], len(kw[1]), true
			}
			return c[2], len(c[1]), true
		}
	}
	kw := keywordStop.FindStringSubmatch(s)
	if kw == nil {
		return "", 0, false
	}
	return kw[2], len(kw[1]), true
}
