package formengine

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-desk/constants"
)

// Shape is the rendering decision made once for each value.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeSequence
	ShapeMapping
	// ShapeFlatGroup is a mapping rendered as one labelled sub-form.
	ShapeFlatGroup
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeSequence:
		return "sequence"
	case ShapeMapping:
		return "mapping"
	case ShapeFlatGroup:
		return "flat_group"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Field describes one editable leaf.
type Field struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Path    Path   `json:"path"`
	Key     string `json:"key"`
	Section string `json:"section,omitempty"`
	Group   string `json:"group,omitempty"`
}

// Renderer turns records into ordered field lists.
type Renderer struct {
	reserved map[string]struct{}
	groups   map[string]struct{}
}

type Option func(*Renderer)

// WithReservedKeys replaces the keys that are never rendered.
func WithReservedKeys(keys ...string) Option {
	return func(r *Renderer) {
		r.reserved = toSet(keys)
	}
}

// WithFlatGroups replaces the keys rendered as flat sub-forms.
func WithFlatGroups(keys ...string) Option {
	return func(r *Renderer) {
		r.groups = toSet(keys)
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		reserved: toSet(constants.ReservedKeys),
		groups:   toSet(constants.FlatGroupKeys),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var defaultRenderer = NewRenderer()

// RenderFields lists the editable leaves of record in insertion order, using the
// default reserved and flat-group keys.
func RenderFields(record *Mapping) []Field {
	return defaultRenderer.Render(record)
}

// Classify decides the shape of the value stored under key.
func Classify(key string, v Value) Shape {
	return defaultRenderer.Classify(key, v)
}

func (r *Renderer) Classify(key string, v Value) Shape {
	switch v.(type) {
	case *Mapping:
		if _, ok := r.groups[key]; ok {
			return ShapeFlatGroup
		}
		return ShapeMapping
	case *Sequence:
		return ShapeSequence
	}
	return ShapeScalar
}

func (r *Renderer) Render(record *Mapping) []Field {
	fields := make([]Field, 0, record.Len())
	if record == nil {
		return fields
	}
	r.walkMapping(record, nil, "", &fields)
	return fields
}

func (r *Renderer) walkMapping(m *Mapping, at Path, group string, out *[]Field) {
	for _, key := range m.keys {
		if _, skip := r.reserved[key]; skip {
			continue
		}
		r.walk(key, m.values[key], at.Append(Name(key)), group, out)
	}
}

func (r *Renderer) walk(key string, v Value, at Path, group string, out *[]Field) {
	switch r.Classify(key, v) {
	case ShapeFlatGroup:
		r.walkMapping(v.(*Mapping), at, key, out)
	case ShapeMapping:
		r.walkMapping(v.(*Mapping), at, group, out)
	case ShapeSequence:
		for i, item := range v.(*Sequence).items {
			r.walk("", item, at.Append(Index(i)), group, out)
		}
	case ShapeScalar:
		*out = append(*out, Field{
			Label:   label(at),
			Value:   v.(Scalar).Text(),
			Path:    at,
			Key:     lastName(at),
			Section: at.Parent().String(),
			Group:   group,
		})
	}
}

// label is the last key of the path; an element of a scalar list is named after
// its list with a 1-based position.
func label(p Path) string {
	last, ok := p.Last()
	if !ok {
		return ""
	}
	if !last.IsIndex() {
		return last.Key()
	}
	for i := len(p) - 2; i >= 0; i-- {
		if !p[i].IsIndex() {
			return fmt.Sprintf("%s #%d", p[i].Key(), last.Index()+1)
		}
	}
	return fmt.Sprintf("#%d", last.Index()+1)
}

// lastName is the nearest name segment at or above the end of the path.
func lastName(p Path) string {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsIndex() {
			return p[i].Key()
		}
	}
	return ""
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
