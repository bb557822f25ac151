// Package metadata defines the Scalar value type allowed in vector record metadata.
//
// A Scalar is exactly one of: string, number, boolean, array of strings.
// Values of any other shape are rejected at the boundary rather than coerced.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind is the tag of a Scalar.
type Kind uint8

// Scalar kinds. KindInvalid is the zero value and never appears in a Map.
const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStrings:
		return "strings"
	default:
		return "invalid"
	}
}

// Scalar is a tagged union of the supported metadata value shapes.
type Scalar struct {
	kind Kind
	s    string
	n    float64
	b    bool
	ss   []string
}

// String creates a string Scalar.
func String(v string) Scalar { return Scalar{kind: KindString, s: v} }

// Number creates a numeric Scalar.
func Number(v float64) Scalar { return Scalar{kind: KindNumber, n: v} }

// Bool creates a boolean Scalar.
func Bool(v bool) Scalar { return Scalar{kind: KindBool, b: v} }

// Strings creates an array-of-strings Scalar. The slice is copied.
func Strings(v []string) Scalar {
	cp := make([]string, len(v))
	copy(cp, v)
	return Scalar{kind: KindStrings, ss: cp}
}

// Kind returns the tag.
func (s Scalar) Kind() Kind { return s.kind }

// Valid reports whether the Scalar holds a value.
func (s Scalar) Valid() bool { return s.kind != KindInvalid }

// Str returns the string value and whether the Scalar is a string.
func (s Scalar) Str() (string, bool) { return s.s, s.kind == KindString }

// Num returns the numeric value and whether the Scalar is a number.
func (s Scalar) Num() (float64, bool) { return s.n, s.kind == KindNumber }

// Boolean returns the boolean value and whether the Scalar is a boolean.
func (s Scalar) Boolean() (bool, bool) { return s.b, s.kind == KindBool }

// StrSlice returns a copy of the string slice and whether the Scalar is an array of strings.
func (s Scalar) StrSlice() ([]string, bool) {
	if s.kind != KindStrings {
		return nil, false
	}
	cp := make([]string, len(s.ss))
	copy(cp, s.ss)
	return cp, true
}

// Any returns the value as a plain Go value (string, float64, bool, []string).
func (s Scalar) Any() any {
	switch s.kind {
	case KindString:
		return s.s
	case KindNumber:
		return s.n
	case KindBool:
		return s.b
	case KindStrings:
		v, _ := s.StrSlice()
		return v
	default:
		return nil
	}
}

// Equal reports deep equality.
func (s Scalar) Equal(o Scalar) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case KindString:
		return s.s == o.s
	case KindNumber:
		return s.n == o.n
	case KindBool:
		return s.b == o.b
	case KindStrings:
		if len(s.ss) != len(o.ss) {
			return false
		}
		for i := range s.ss {
			if s.ss[i] != o.ss[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// FromAny converts an arbitrary value into a Scalar.
// Returns false for nil, nested objects, mixed arrays and non-finite numbers.
func FromAny(v any) (Scalar, bool) {
	switch x := v.(type) {
	case Scalar:
		return x, x.Valid()
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return Number(float64(x)), true
	case int8:
		return Number(float64(x)), true
	case int16:
		return Number(float64(x)), true
	case int32:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case uint:
		return Number(float64(x)), true
	case uint8:
		return Number(float64(x)), true
	case uint16:
		return Number(float64(x)), true
	case uint32:
		return Number(float64(x)), true
	case uint64:
		return Number(float64(x)), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Scalar{}, false
		}
		return finite(f)
	case []string:
		return Strings(x), true
	case []any:
		ss := make([]string, len(x))
		for i, item := range x {
			str, ok := item.(string)
			if !ok {
				return Scalar{}, false
			}
			ss[i] = str
		}
		return Scalar{kind: KindStrings, ss: ss}, true
	default:
		return Scalar{}, false
	}
}

func finite(f float64) (Scalar, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Scalar{}, false
	}
	return Number(f), true
}

// MarshalJSON encodes the Scalar as its natural JSON value.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal invalid scalar")
	}
	if s.kind == KindStrings && s.ss == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Any()) //nolint:wrapcheck // plain value encoding
}

// UnmarshalJSON decodes a JSON value, rejecting objects, null and mixed arrays.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode scalar: %w", err)
	}
	parsed, ok := FromAny(v)
	if !ok {
		return fmt.Errorf("unsupported metadata value %s", string(data))
	}
	*s = parsed
	return nil
}

// Map is a metadata map holding only Scalar values.
type Map map[string]Scalar

// Filter keeps the Scalar-typed entries of raw and returns the sorted list of rejected keys.
func Filter(raw map[string]any) (Map, []string) {
	out := make(Map, len(raw))
	var rejected []string
	for k, v := range raw {
		s, ok := FromAny(v)
		if !ok {
			rejected = append(rejected, k)
			continue
		}
		out[k] = s
	}
	sort.Strings(rejected)
	return out, rejected
}

// Merge returns a new Map with the entries of base overridden by those of overlay.
func Merge(base, overlay Map) Map {
	out := make(Map, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Get returns the value at key as a plain Go value, or nil.
func (m Map) Get(key string) any {
	s, ok := m[key]
	if !ok {
		return nil
	}
	return s.Any()
}

// String returns the string at key, or "".
func (m Map) String(key string) string {
	v, _ := m[key].Str()
	return v
}

// Plain converts the Map into map[string]any, e.g. for JSON responses.
func (m Map) Plain() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}
