package formengine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either a mapping key or a sequence index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Name returns a segment that selects a mapping key.
func Name(key string) Segment { return Segment{key: key} }

// Index returns a segment that selects a sequence element.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) IsIndex() bool { return s.isIndex }

// Key is the mapping key of a name segment.
func (s Segment) Key() string { return s.key }

// Index is the position of an index segment.
func (s Segment) Index() int { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path locates one value inside a record.
type Path []Segment

func NewPath(segs ...Segment) Path {
	return append(Path(nil), segs...)
}

// Append returns a new path; p is never modified.
func (p Path) Append(s Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Parent drops the last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// String joins segments with dots, e.g. lineItems.0.amount.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

var errEmptyPath = errors.New("empty path")

// ParsePath reads the dotted form. Segments made only of digits become indices, so a
// mapping key that looks numeric cannot be addressed this way; build the Path with
// Name instead.
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errEmptyPath
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("empty segment at position %d in %q", i, s)
		}
		if isDigits(part) {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("index %q: %w", part, err)
			}
			p = append(p, Index(n))
			continue
		}
		p = append(p, Name(part))
	}
	return p, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// MarshalJSON writes the path as an array of keys (strings) and indices (numbers).
func (p Path) MarshalJSON() ([]byte, error) {
	out := make([]any, len(p))
	for i, s := range p {
		if s.isIndex {
			out[i] = s.index
		} else {
			out[i] = s.key
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the array form, or the dotted string form.
func (p *Path) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParsePath(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("path must be an array or a string: %w", err)
	}
	out := make(Path, 0, len(raw))
	for i, r := range raw {
		if len(r) > 0 && r[0] == '"' {
			var key string
			if err := json.Unmarshal(r, &key); err != nil {
				return err
			}
			out = append(out, Name(key))
			continue
		}
		var idx int
		if err := json.Unmarshal(r, &idx); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if idx < 0 {
			return fmt.Errorf("segment %d: negative index %d", i, idx)
		}
		out = append(out, Index(idx))
	}
	*p = out
	return nil
}
