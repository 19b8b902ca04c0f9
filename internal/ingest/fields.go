// Package ingest turns an inbound create or update request into normalized
// fields and validated asset files.
package ingest

import (
	"encoding/json"
	"strconv"
)

// ValueKind tells which representation a Value holds.
type ValueKind int

const (
	Absent ValueKind = iota
	Scalar
	List
	Raw
)

func (k ValueKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case Raw:
		return "raw"
	}
	return "absent"
}

// Value is one request field. A field may arrive as a single string, as
// several values under the same key, or as embedded JSON; Value keeps which
// of those it was so the normalizer can coerce it in one place.
type Value struct {
	kind   ValueKind
	scalar string
	list   []string
	raw    json.RawMessage
}

// ScalarValue wraps a single string.
func ScalarValue(s string) Value { return Value{kind: Scalar, scalar: s} }

// ListValue wraps repeated values. The slice is copied.
func ListValue(items ...string) Value {
	return Value{kind: List, list: append([]string{}, items...)}
}

// RawValue wraps a JSON document.
func RawValue(b []byte) Value {
	return Value{kind: Raw, raw: append(json.RawMessage{}, b...)}
}

// Kind reports the representation.
func (v Value) Kind() ValueKind { return v.kind }

// Present reports whether the field was supplied at all.
func (v Value) Present() bool { return v.kind != Absent }

// First returns the single string form of v. Lists yield their first
// element and raw JSON yields its text.
func (v Value) First() (string, bool) {
	switch v.kind {
	case Scalar:
		return v.scalar, true
	case List:
		if len(v.list) == 0 {
			return "", true
		}
		return v.list[0], true
	case Raw:
		return string(v.raw), true
	}
	return "", false
}

// Items returns the elements of a list, or the scalar as a one-element list.
func (v Value) Items() []string {
	switch v.kind {
	case Scalar:
		return []string{v.scalar}
	case List:
		return append([]string{}, v.list...)
	}
	return nil
}

// JSON returns the raw document held by v.
func (v Value) JSON() (json.RawMessage, bool) {
	if v.kind != Raw {
		return nil, false
	}
	return v.raw, true
}

// Equal reports whether two values hold the same representation and data.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Scalar:
		return v.scalar == o.scalar
	case List:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case Raw:
		return string(v.raw) == string(o.raw)
	}
	return true
}

// Fields maps field names to values. A missing key reads as Absent.
type Fields map[string]Value

// Get returns the named value.
func (f Fields) Get(name string) Value { return f[name] }

// Has reports whether name was supplied.
func (f Fields) Has(name string) bool { return f[name].Present() }

// Text returns the string form of a normalized text field.
func (f Fields) Text(name string) (string, bool) {
	return f[name].First()
}

// TextOr returns the text field, or def when it is absent or empty.
func (f Fields) TextOr(name, def string) string {
	if s, ok := f.Text(name); ok && s != "" {
		return s
	}
	return def
}

// Int returns a normalized integer field.
func (f Fields) Int(name string) (int, bool) {
	s, ok := f[name].First()
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool returns a normalized boolean field.
func (f Fields) Bool(name string) (bool, bool) {
	s, ok := f[name].First()
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// Tags returns a normalized tag list.
func (f Fields) Tags(name string) ([]string, bool) {
	v := f[name]
	if !v.Present() {
		return nil, false
	}
	items := v.Items()
	if items == nil {
		items = []string{}
	}
	return items, true
}

// Decode unmarshals a normalized JSON field into out. It reports false when
// the field is absent or does not fit out.
func (f Fields) Decode(name string, out any) bool {
	raw, ok := f[name].JSON()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Equal reports whether both maps hold the same present fields.
func (f Fields) Equal(o Fields) bool {
	n := 0
	for k, v := range f {
		if !v.Present() {
			continue
		}
		n++
		if !v.Equal(o[k]) {
			return false
		}
	}
	for _, v := range o {
		if v.Present() {
			n--
		}
	}
	return n == 0
}
