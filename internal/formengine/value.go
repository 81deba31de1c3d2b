package formengine

import (
	"encoding/json"
	"strconv"
)

// Kind reports which variant a Value holds.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one node of an invoice record. The set of implementations is closed:
// Scalar, *Sequence and *Mapping. Values never change after construction, so a
// *Sequence or *Mapping may be shared between records.
type Value interface {
	Kind() Kind
	isValue()
}

// Scalar is a leaf: a string, a json.Number, a bool or null.
type Scalar struct {
	v any
}

func String(s string) Scalar { return Scalar{v: s} }

func Number(n json.Number) Scalar { return Scalar{v: n} }

func Bool(b bool) Scalar { return Scalar{v: b} }

func Null() Scalar { return Scalar{} }

func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) isValue()   {}

// Raw returns the underlying Go value (string, json.Number, bool or nil).
func (s Scalar) Raw() any { return s.v }

func (s Scalar) IsNull() bool { return s.v == nil }

// Text is the display form of the scalar. Null renders as the empty string.
func (s Scalar) Text() string {
	switch v := s.v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v)
}

// Sequence is an ordered list of values, typically line items.
type Sequence struct {
	items []Value
}

func NewSequence(items ...Value) *Sequence {
	s := &Sequence{items: make([]Value, 0, len(items))}
	for _, it := range items {
		s.items = append(s.items, orNull(it))
	}
	return s
}

func (*Sequence) Kind() Kind { return KindSequence }
func (*Sequence) isValue()   {}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *Sequence) At(i int) (Value, bool) {
	if s == nil || i < 0 || i >= len(s.items) {
		return nil, false
	}
	return s.items[i], true
}

// Items returns a copy of the element slice; the elements themselves are shared.
func (s *Sequence) Items() []Value {
	if s == nil {
		return nil
	}
	return append([]Value(nil), s.items...)
}

func (s *Sequence) with(i int, v Value) *Sequence {
	items := make([]Value, len(s.items))
	copy(items, s.items)
	items[i] = v
	return &Sequence{items: items}
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping is a string-keyed object that remembers insertion order.
type Mapping struct {
	keys   []string
	values map[string]Value
}

// NewMapping builds a mapping from entries in order. A repeated key keeps its first
// position and takes the last value.
func NewMapping(entries ...Entry) *Mapping {
	m := &Mapping{values: make(map[string]Value, len(entries))}
	for _, e := range entries {
		m.set(e.Key, e.Value)
	}
	return m
}

func (*Mapping) Kind() Kind { return KindMapping }
func (*Mapping) isValue()   {}

func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Text returns the value under key when it is a non-null scalar.
func (m *Mapping) Text(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(Scalar)
	if !ok || s.IsNull() {
		return "", false
	}
	return s.Text(), true
}

func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Key: k, Value: m.values[k]})
	}
	return out
}

// set is only used while a mapping is being built.
func (m *Mapping) set(key string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = orNull(v)
}

// with returns a copy of m where key holds v. The key order slice is shared since
// the key set does not change.
func (m *Mapping) with(key string, v Value) *Mapping {
	values := make(map[string]Value, len(m.values))
	for k, old := range m.values {
		values[k] = old
	}
	values[key] = v
	return &Mapping{keys: m.keys, values: values}
}

func orNull(v Value) Value {
	if v == nil {
		return Null()
	}
	return v
}

// Equal reports deep equality. Mapping key order is significant.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x.v == y.v
	case *Sequence:
		y, ok := b.(*Sequence)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.Len() != y.Len() {
			return false
		}
		for i := range x.items {
			if !Equal(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case *Mapping:
		y, ok := b.(*Mapping)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			if y.keys[i] != k || !Equal(x.values[k], y.values[k]) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}
