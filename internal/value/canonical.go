package value

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Key returns a canonical string encoding of v, used as the identity of a
// value in seen-sets (distinct, distinct-by, count-by).
//
// The encoding is JSON-like with these differences from json.Marshal:
//  1. Record keys are sorted, so key order does not affect identity
//  2. Strings are NFC normalized and HTML characters are not escaped
//  3. Integral floats encode like integers (2.0 and 2 are the same key)
//  4. Groupings encode as their key followed by their elements
func Key(v any) string {
	var buf bytes.Buffer
	writeKey(&buf, v)
	return buf.String()
}

func writeKey(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<53 {
			buf.WriteString(strconv.FormatInt(int64(x), 10))
			return
		}
		buf.WriteString(formatFloat(x))
	case string:
		writeKeyString(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(buf, e)
		}
		buf.WriteByte(']')
	case Record:
		keys := x.Keys()
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKeyString(buf, k)
			buf.WriteByte(':')
			e, _ := x.Get(k)
			writeKey(buf, e)
		}
		buf.WriteByte('}')
	case Grouping:
		buf.WriteString("group(")
		writeKey(buf, x.GroupKey())
		buf.WriteByte(':')
		writeKey(buf, x.Elements())
		buf.WriteByte(')')
	default:
		n := Normalize(v)
		if KindOf(n) != KindOther {
			writeKey(buf, n)
			return
		}
		buf.WriteString(Format(v))
	}
}

func writeKeyString(buf *bytes.Buffer, s string) {
	var sb bytes.Buffer
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	out := sb.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	buf.Write(out)
}
