package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is an ordered mapping of names to values.
//
// Records are the rows that flow through multi-variable pipeline stages: each
// from/join/let clause appends one entry, so key order is clause order.
// Records are immutable; With returns a copy.
type Record struct {
	keys []string
	vals []any
}

// Pair is a key-value pair for record construction.
type Pair struct {
	Key   string
	Value any
}

// P is shorthand for Pair.
func P(key string, v any) Pair {
	return Pair{Key: key, Value: v}
}

// NewRecord builds a record from pairs. Later duplicates overwrite earlier
// ones in place.
func NewRecord(pairs ...Pair) Record {
	r := Record{}
	for _, p := range pairs {
		r = r.With(p.Key, p.Value)
	}
	return r
}

// Single returns a record holding one entry.
func Single(key string, v any) Record {
	return Record{keys: []string{key}, vals: []any{v}}
}

// Len returns the number of entries.
func (r Record) Len() int {
	return len(r.keys)
}

// Keys returns the entry names in insertion order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.vals[i], true
		}
	}
	return nil, false
}

// At returns the i-th entry.
func (r Record) At(i int) (string, any) {
	return r.keys[i], r.vals[i]
}

// With returns a copy of r with key set to v. An existing key keeps its
// position.
func (r Record) With(key string, v any) Record {
	keys := make([]string, len(r.keys), len(r.keys)+1)
	vals := make([]any, len(r.vals), len(r.vals)+1)
	copy(keys, r.keys)
	copy(vals, r.vals)
	for i, k := range keys {
		if k == key {
			vals[i] = v
			return Record{keys: keys, vals: vals}
		}
	}
	return Record{keys: append(keys, key), vals: append(vals, v)}
}

// Sole returns the only value of a single-entry record.
func (r Record) Sole() (any, error) {
	if len(r.keys) != 1 {
		return nil, fmt.Errorf("selection cannot select several objects: %s", strings.Join(r.keys, ", "))
	}
	return r.vals[0], nil
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(Plain(r.vals[i]))
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the record like a JS object literal.
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(Format(r.vals[i]))
	}
	sb.WriteByte('}')
	return sb.String()
}
