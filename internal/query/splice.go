package query

import (
	"regexp"
	"strings"
)

var reference = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// Splice turns query text with $name references into fragments and values.
// resolve is asked for every reference outside string literals; a resolved
// reference becomes a value slot, an unresolved one stays in the text.
//
//	Splice("n in $numbers where n > 2", lookup)
//	// []string{"n in ", " where n > 2"}, []any{lookup("numbers")}
func Splice(text string, resolve func(name string) (any, bool)) ([]string, []any) {
	var (
		fragments []string
		values    []any
		sb        strings.Builder
	)
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(text, i)
			sb.WriteString(text[i:end])
			i = end
		case c == '$' && (i == 0 || !identChar(text[i-1])):
			ref := reference.FindString(text[i:])
			if ref == "" {
				sb.WriteByte(c)
				i++
				continue
			}
			v, ok := resolve(ref[1:])
			if !ok {
				sb.WriteString(ref)
			} else {
				fragments = append(fragments, sb.String())
				values = append(values, v)
				sb.Reset()
			}
			i += len(ref)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return append(fragments, sb.String()), values
}

// closingQuote returns the offset just past the string literal opening at i.
func closingQuote(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(s)
}

func identChar(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
