package formengine

import "fmt"

// Get reads the value at path. An empty path returns the record itself.
func Get(record *Mapping, path Path) (Value, error) {
	if record == nil {
		return nil, &PathError{Op: "get", Path: path, Err: fmt.Errorf("%w: no record", ErrPathNotFound)}
	}
	var cur Value = record
	for i, seg := range path {
		next, err := step(cur, seg)
		if err != nil {
			return nil, &PathError{Op: "get", Path: path, At: i, Err: err}
		}
		cur = next
	}
	return cur, nil
}

// ApplyEdit returns a copy of record whose leaf at path holds value as a string.
// Every mapping and sequence on the way to the leaf is copied; everything else is
// shared with record, which is left untouched. The path must name an existing leaf.
func ApplyEdit(record *Mapping, path Path, value string) (*Mapping, error) {
	if record == nil {
		return nil, &PathError{Op: "edit", Path: path, Err: fmt.Errorf("%w: no record", ErrPathNotFound)}
	}
	if len(path) == 0 {
		return nil, &PathError{Op: "edit", Path: path, Err: fmt.Errorf("%w: %v", ErrPathNotFound, errEmptyPath)}
	}
	updated, err := replaceAt(record, path, 0, String(value))
	if err != nil {
		return nil, err
	}
	return updated.(*Mapping), nil
}

func replaceAt(node Value, path Path, i int, leaf Scalar) (Value, error) {
	seg := path[i]
	child, err := step(node, seg)
	if err != nil {
		return nil, &PathError{Op: "edit", Path: path, At: i, Err: err}
	}

	var replacement Value
	if i == len(path)-1 {
		if child.Kind() != KindScalar {
			return nil, &PathError{Op: "edit", Path: path, At: i,
				Err: fmt.Errorf("%w: target is a %s, not a leaf", ErrTypeMismatch, child.Kind())}
		}
		replacement = leaf
	} else {
		replacement, err = replaceAt(child, path, i+1, leaf)
		if err != nil {
			return nil, err
		}
	}

	switch n := node.(type) {
	case *Mapping:
		return n.with(seg.Key(), replacement), nil
	case *Sequence:
		return n.with(seg.Index(), replacement), nil
	}
	return nil, &PathError{Op: "edit", Path: path, At: i, Err: ErrTypeMismatch}
}

func step(v Value, seg Segment) (Value, error) {
	switch n := v.(type) {
	case *Mapping:
		if seg.IsIndex() {
			return nil, fmt.Errorf("%w: index %d applied to a mapping", ErrTypeMismatch, seg.Index())
		}
		child, ok := n.Get(seg.Key())
		if !ok {
			return nil, fmt.Errorf("%w: no key %q", ErrPathNotFound, seg.Key())
		}
		return child, nil
	case *Sequence:
		if !seg.IsIndex() {
			return nil, fmt.Errorf("%w: key %q applied to a sequence", ErrTypeMismatch, seg.Key())
		}
		child, ok := n.At(seg.Index())
		if !ok {
			return nil, fmt.Errorf("%w: index %d out of range (len %d)", ErrPathNotFound, seg.Index(), n.Len())
		}
		return child, nil
	}
	return nil, fmt.Errorf("%w: cannot descend into a %s with %q", ErrTypeMismatch, v.Kind(), seg.String())
}
