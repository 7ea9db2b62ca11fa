package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldMap is an insertion-ordered map of field name to value. Order matters:
// diff output is deterministic because it follows first-appearance order of
// fields, which in turn follows document order of the decoded snapshot.
type FieldMap struct {
	keys []string
	vals map[string]Value
}

// NewFieldMap returns an empty field map.
func NewFieldMap() *FieldMap {
	return &FieldMap{vals: make(map[string]Value)}
}

// FieldMapOf builds a field map from alternating name/value pairs, keeping
// the given order. Convenient for tests and call sites with literal data.
func FieldMapOf(pairs ...any) *FieldMap {
	m := NewFieldMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		if v, isValue := pairs[i+1].(Value); isValue {
			m.Set(name, v)
		} else {
			m.Set(name, FromAny(pairs[i+1]))
		}
	}
	return m
}

// Set adds or replaces a field. First insertion fixes the field's position.
func (m *FieldMap) Set(name string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, exists := m.vals[name]; !exists {
		m.keys = append(m.keys, name)
	}
	m.vals[name] = v
}

// Get returns the value for a field and whether it is present.
func (m *FieldMap) Get(name string) (Value, bool) {
	if m == nil || m.vals == nil {
		return Value{}, false
	}
	v, ok := m.vals[name]
	return v, ok
}

// Len returns the number of fields. Safe on a nil map.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Fields returns the field names in insertion order.
func (m *FieldMap) Fields() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// MarshalJSON serializes the map in insertion order.
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving document key order.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFieldMap(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// ParseFieldMap decodes a JSON object into an ordered field map. The token
// stream is walked directly because encoding/json maps discard key order.
func ParseFieldMap(data []byte) (*FieldMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parse snapshot: expected object, got %v", tok)
	}

	m := NewFieldMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parse snapshot: non-string key %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot field %q: %w", key, err)
		}
		m.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return m, nil
}

// decodeValue consumes one JSON value from the decoder and converts it into
// the tagged union. Number parse failures degrade to the unrepresentable
// marker instead of aborting the whole snapshot.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := make(map[string]Value)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("non-string key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(m), nil
		case '[':
			var list []Value
			for dec.More() {
				el, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				list = append(list, el)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{Kind: KindList, List: list}, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Unrepresentable(), nil
		}
		return Number(f), nil
	case nil:
		return Null(), nil
	default:
		return Unrepresentable(), nil
	}
}
