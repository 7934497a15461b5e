package measure

import (
	"bytes"
	"encoding/json"
)

// Row is an ordered set of named measurement fields. Setting an existing key
// replaces its value without moving it, so layers can extend a row produced
// by the layer below without disturbing the column order.
type Row struct {
	keys   []string
	values map[string]Value
}

// NewRow returns an empty row with room for n fields.
func NewRow(n int) *Row {
	return &Row{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Set stores v under key and returns the row for chaining.
func (r *Row) Set(key string, v Value) *Row {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (Value, bool) {
	if r == nil {
		return Empty, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Row) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns the field names in insertion order.
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Each calls fn for every field in order.
func (r *Row) Each(fn func(key string, v Value)) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		fn(k, r.values[k])
	}
}

// Clone returns an independent copy.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	c := NewRow(len(r.keys))
	for _, k := range r.keys {
		c.Set(k, r.values[k])
	}
	return c
}

// MarshalJSON encodes the row as a JSON object preserving field order.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Columns returns the union of keys across rows in first-seen order.
func Columns(rows []*Row) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		r.Each(func(k string, _ Value) {
			if _, ok := seen[k]; ok {
				return
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		})
	}
	return cols
}
