package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starford/insighthink/internal/apperr"
)

// FieldKind is the canonical type a declared field is coerced to.
type FieldKind int

const (
	Text FieldKind = iota
	Int
	Bool
	Tags
	JSON
)

// FieldSpec declares one accepted field.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Normalize coerces the declared fields of in into canonical values and drops
// everything undeclared. Absent fields stay absent so that callers can keep
// the previous or default value. Normalizing its own output is a no-op.
//
//   - Text: the string, or the first element of a list, trimmed.
//   - Int: base-10 integer; anything unparsable becomes absent.
//   - Bool: strconv.ParseBool plus the HTML checkbox "on"; otherwise absent.
//   - Tags: every element split on commas, trimmed, empty segments dropped,
//     duplicates removed in first-seen order. A scalar holding a JSON array
//     of strings is read as that array.
//   - JSON: compact re-encoding of a valid document, "[]" when malformed.
func Normalize(in Fields, specs []FieldSpec) Fields {
	out := make(Fields, len(specs))
	for _, spec := range specs {
		v := in[spec.Name]
		if !v.Present() {
			continue
		}
		var nv Value
		switch spec.Kind {
		case Text:
			nv = normalizeText(v)
		case Int:
			nv = normalizeInt(v)
		case Bool:
			nv = normalizeBool(v)
		case Tags:
			nv = normalizeTags(v)
		case JSON:
			nv = normalizeJSON(v)
		}
		if nv.Present() {
			out[spec.Name] = nv
		}
	}
	return out
}

func normalizeText(v Value) Value {
	if v.Kind() == Raw {
		// A JSON string literal supplied for a text field.
		var s string
		if err := json.Unmarshal(v.raw, &s); err == nil {
			return ScalarValue(strings.TrimSpace(s))
		}
	}
	s, _ := v.First()
	return ScalarValue(strings.TrimSpace(s))
}

func normalizeInt(v Value) Value {
	s, _ := v.First()
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Value{}
	}
	return ScalarValue(strconv.Itoa(n))
}

func normalizeBool(v Value) Value {
	s, _ := v.First()
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "on") {
		return ScalarValue("true")
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return Value{}
	}
	return ScalarValue(strconv.FormatBool(b))
}

func normalizeTags(v Value) Value {
	items := v.Items()
	switch v.Kind() {
	case Scalar:
		var arr []string
		if s := strings.TrimSpace(v.scalar); strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &arr) == nil {
			items = arr
		}
	case Raw:
		var arr []string
		if json.Unmarshal(v.raw, &arr) == nil {
			items = arr
		}
	}
	return ListValue(SplitTags(items...)...)
}

// SplitTags splits each input on commas, trims, drops empty segments and
// removes duplicates while keeping first-seen order.
func SplitTags(in ...string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, item := range in {
		for _, seg := range strings.Split(item, ",") {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			if _, dup := seen[seg]; dup {
				continue
			}
			seen[seg] = struct{}{}
			out = append(out, seg)
		}
	}
	return out
}

func normalizeJSON(v Value) Value {
	var src []byte
	if raw, ok := v.JSON(); ok {
		src = raw
	} else {
		s, _ := v.First()
		src = []byte(s)
	}
	var buf bytes.Buffer
	if !json.Valid(src) || json.Compact(&buf, src) != nil {
		return RawValue([]byte("[]"))
	}
	return RawValue(buf.Bytes())
}

// Require fails with a validation error naming every listed field that is
// absent or blank.
func Require(f Fields, names ...string) error {
	var missing []string
	for _, name := range names {
		if s, ok := f.Text(name); !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
