package event

import (
	"bytes"
	"encoding/json"
)

// Field is one named payload value.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for building a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Payload is an ordered list of already-flattened entity fields.
// Values should be primitives, slices or maps of primitives; never live records.
type Payload []Field

// Get returns the value for key. Later duplicates win.
func (p Payload) Get(key string) (any, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return nil, false
}

// Keys returns field names in insertion order.
func (p Payload) Keys() []string {
	out := make([]string, 0, len(p))
	for _, f := range p {
		out = append(out, f.Key)
	}
	return out
}

// Map returns a fresh map with every field. Nested maps and slices are
// copied, so the caller may mutate the result freely.
func (p Payload) Map() map[string]any {
	m := make(map[string]any, len(p))
	for _, f := range p {
		m[f.Key] = deepCopy(f.Value)
	}
	return m
}

// Clone copies the field list and every nested map or slice.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for i, f := range p {
		out[i] = Field{Key: f.Key, Value: deepCopy(f.Value)}
	}
	return out
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return x
		}
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		if x == nil {
			return x
		}
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = deepCopy(e)
		}
		return s
	case []map[string]any:
		if x == nil {
			return x
		}
		s := make([]map[string]any, len(x))
		for i, e := range x {
			s[i], _ = deepCopy(e).(map[string]any)
		}
		return s
	case []string:
		return append([]string(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	case []int:
		return append([]int(nil), x...)
	}
	return v
}

// MarshalJSON encodes the payload as an object, keeping field order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
