package address

import (
	"errors"
	"fmt"

	"github.com/commontoolsinc/memory/pkg/fact"
)

// ErrNotFound is returned by Get/Set when an interior path segment names
// a key or index that does not exist in the current value.
var ErrNotFound = errors.New("address: not found")

// ErrTypeMismatch is returned by Get/Set when a path segment requires
// its parent to be an object or array, but the parent is a scalar (or an
// array when an object key was expected, or vice versa).
var ErrTypeMismatch = errors.New("address: type mismatch")

// undefined is the sentinel written as a value to mean "delete this key"
// (interior path) or "retract this fact" (path == []). It is distinct
// from a JSON null, which is a real stored value.
type undefined struct{}

// Undefined is the sentinel JsonValue a caller passes to Set to delete a
// key, or to retract the whole fact when Path == [].
var Undefined fact.JsonValue = undefined{}

// IsUndefined reports whether value is the deletion/retraction sentinel.
func IsUndefined(value fact.JsonValue) bool {
	_, ok := value.(undefined)
	return ok
}

// Get resolves path against root, descending through nested
// maps/slices. An empty path returns root itself (even if root is nil).
func Get(root fact.JsonValue, path Path) (fact.JsonValue, error) {
	current := root
	for i, segment := range path {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, fmt.Errorf("%w: at %q", ErrNotFound, Path(path[:i+1]))
			}
			current = value
		case []any:
			idx, ok := ParseIndex(segment)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a valid array index", ErrTypeMismatch, segment)
			}
			if idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, idx)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("%w: cannot descend into %T at %q", ErrTypeMismatch, current, Path(path[:i]))
		}
	}
	return current, nil
}

// Set returns a new root with value merged in at path. The path from the
// root down to the write is cloned; siblings are shared with the
// original tree (copy-on-write, not a deep clone of the whole tree).
//
// value == Undefined deletes the addressed key (interior path) or
// retracts the whole fact (path == nil), by returning Undefined itself
// at the top if path is empty.
func Set(root fact.JsonValue, path Path, value fact.JsonValue) (fact.JsonValue, error) {
	if len(path) == 0 {
		return value, nil
	}
	return setAt(root, path, value)
}

func setAt(node fact.JsonValue, path Path, value fact.JsonValue) (fact.JsonValue, error) {
	segment := path[0]
	rest := path[1:]

	switch current := node.(type) {
	case map[string]any:
		clone := make(map[string]any, len(current)+1)
		for k, v := range current {
			clone[k] = v
		}
		if len(rest) == 0 {
			if IsUndefined(value) {
				delete(clone, segment)
			} else {
				clone[segment] = value
			}
			return clone, nil
		}
		child, ok := clone[segment]
		if !ok {
			return nil, fmt.Errorf("%w: at %q", ErrNotFound, segment)
		}
		updated, err := setAt(child, rest, value)
		if err != nil {
			return nil, err
		}
		clone[segment] = updated
		return clone, nil

	case []any:
		idx, ok := ParseIndex(segment)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a valid array index", ErrTypeMismatch, segment)
		}
		if idx < 0 || idx > len(current) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, idx)
		}
		// idx == len(current) appends: writing one past the end is how a
		// path-addressed array grows, mirroring plain JS array assignment
		// to arr[arr.length].
		if idx == len(current) {
			if len(rest) != 0 {
				return nil, fmt.Errorf("%w: cannot descend into a not-yet-appended index %d", ErrNotFound, idx)
			}
			if IsUndefined(value) {
				return nil, fmt.Errorf("%w: cannot delete an array element by index", ErrTypeMismatch)
			}
			clone := make([]any, len(current)+1)
			copy(clone, current)
			clone[idx] = value
			return clone, nil
		}
		clone := make([]any, len(current))
		copy(clone, current)
		if len(rest) == 0 {
			if IsUndefined(value) {
				return nil, fmt.Errorf("%w: cannot delete an array element by index", ErrTypeMismatch)
			}
			clone[idx] = value
			return clone, nil
		}
		updated, err := setAt(clone[idx], rest, value)
		if err != nil {
			return nil, err
		}
		clone[idx] = updated
		return clone, nil

	default:
		return nil, fmt.Errorf("%w: cannot descend into %T at %q", ErrTypeMismatch, node, segment)
	}
}
