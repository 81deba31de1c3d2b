package formengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// CopyIndent is the indentation used when a record is shown or copied as JSON.
const CopyIndent = "   "

// Parse decodes a JSON object, keeping key order at every level.
func Parse(data []byte) (*Mapping, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed document", ErrInvalidJSON)
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, fmt.Errorf("%w: expected an object, got %s", ErrInvalidJSON, res.Type)
	}
	return decodeObject(res), nil
}

// ParseValue decodes any JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed document", ErrInvalidJSON)
	}
	return decode(gjson.ParseBytes(data)), nil
}

func decode(r gjson.Result) Value {
	if r.IsObject() {
		return decodeObject(r)
	}
	if r.IsArray() {
		s := &Sequence{items: []Value{}}
		r.ForEach(func(_, v gjson.Result) bool {
			s.items = append(s.items, decode(v))
			return true
		})
		return s
	}
	switch r.Type {
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return Number(json.Number(strings.TrimSpace(r.Raw)))
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	}
	return Null()
}

func decodeObject(r gjson.Result) *Mapping {
	m := &Mapping{values: map[string]Value{}}
	r.ForEach(func(k, v gjson.Result) bool {
		m.set(k.String(), decode(v))
		return true
	})
	return m
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Indent renders v as indented JSON with keys in record order.
func Indent(v Value, indent string) ([]byte, error) {
	var raw bytes.Buffer
	if err := writeValue(&raw, v); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw.Bytes(), "", indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch n := v.(type) {
	case Scalar:
		b, err := json.Marshal(n.v)
		if err != nil {
			return err
		}
		buf.Write(b)
	case *Sequence:
		if n == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Mapping:
		if n == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeValue(buf, n.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}
