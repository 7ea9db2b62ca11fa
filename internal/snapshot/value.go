// Package snapshot models point-in-time field maps of tracked records and
// computes minimal field-level diffs between them.
//
// Snapshots arrive from CRUD collaborators as loosely-typed JSON-like data.
// A tagged value union keeps the differ and downstream redaction exhaustive
// over the possible shapes instead of relying on runtime type inspection.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind tags the variants of Value.
type Kind int

const (
	// KindAbsent marks a field missing from a snapshot. It only appears in
	// diff output, never inside a stored snapshot.
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
	// KindUnrepresentable marks a value that could not be modeled as
	// structured field data. It compares unequal to everything, itself
	// included, so a bad field always surfaces as changed rather than
	// silently matching.
	KindUnrepresentable
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindUnrepresentable:
		return "unrepresentable"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON-like value space of audited records.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

func Absent() Value          { return Value{Kind: KindAbsent} }
func Null() Value            { return Value{Kind: KindNull} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func Map(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// Unrepresentable returns the fail-closed marker value.
func Unrepresentable() Value { return Value{Kind: KindUnrepresentable} }

// FromAny converts an arbitrary Go value (as produced by JSON decoding or
// handed over by a CRUD collaborator) into a Value. Anything outside the
// JSON-like value space maps to the unrepresentable marker.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Unrepresentable()
		}
		return Number(f)
	case []any:
		list := make([]Value, len(t))
		for i, el := range t {
			list[i] = FromAny(el)
		}
		return Value{Kind: KindList, List: list}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, el := range t {
			m[k] = FromAny(el)
		}
		return Map(m)
	default:
		return Unrepresentable()
	}
}

// Equal implements the structural equality rule for diffing:
// scalars by value, lists element-wise with order significant, maps by
// recursive structural equality over the same key set. Null and absent are
// equal to each other but distinct from any other value. Unrepresentable
// values never equal anything.
func Equal(a, b Value) bool {
	if a.Kind == KindUnrepresentable || b.Kind == KindUnrepresentable {
		return false
	}
	if a.Kind == KindNull || a.Kind == KindAbsent {
		return b.Kind == KindNull || b.Kind == KindAbsent
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindNumber:
		return a.Num == b.Num
	case KindBool:
		return a.Bool == b.Bool
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsEmptyCollection reports whether v is a list or map with zero elements.
// The redaction layer renders these as an explicit "no data" marker so the
// UI can distinguish "cleared" from "never set".
func (v Value) IsEmptyCollection() bool {
	switch v.Kind {
	case KindList:
		return len(v.List) == 0
	case KindMap:
		return len(v.Map) == 0
	default:
		return false
	}
}

// MarshalJSON renders the value back into its natural JSON form. The absent
// marker serializes as null (it never occurs inside stored snapshots) and
// unrepresentable values as a fixed marker string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindAbsent, KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		// Keep integers free of exponent noise.
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		if len(v.Map) == 0 {
			return []byte("{}"), nil
		}
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.Map[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	case KindUnrepresentable:
		return json.Marshal(UnrepresentableMarker)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON decodes a single JSON value into the union.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// UnrepresentableMarker is the serialized form of the fail-closed value.
const UnrepresentableMarker = "<unrepresentable>"
