package address

import (
	"strconv"
	"strings"

	"github.com/commontoolsinc/memory/pkg/fact"
)

// Segment is one step of a path: an object key, or the decimal string
// form of an array index. Paths never name array "length" — that is a
// language-specific view over the data, not an addressable segment.
type Segment = string

// Path addresses descendant JSON within a fact's value. A nil/empty path
// addresses the whole value.
type Path []Segment

// String renders a path for diagnostics, e.g. "a/b/0".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Equal reports whether two paths have identical segments in order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a prefix of p (p includes the
// degenerate case prefix == p).
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Address names a specific (possibly nested) location within one fact:
// (space, entity, type, path).
type Address struct {
	Space  fact.Space
	Entity fact.Entity
	Type   fact.MediaType
	Path   Path
}

// New builds an Address with the given path segments.
func New(space fact.Space, entity fact.Entity, kind fact.MediaType, path ...Segment) Address {
	return Address{Space: space, Entity: entity, Type: kind, Path: Path(path)}
}

// Root returns the whole-value address for the same (space, entity,
// type), discarding any path.
func (a Address) Root() Address {
	return Address{Space: a.Space, Entity: a.Entity, Type: a.Type}
}

// FactKey identifies the (entity, type) pair this address falls within,
// ignoring path and space — the granularity at which the Heap, Nursery,
// and Chronicle's Novelty index their entries.
type FactKey struct {
	Entity fact.Entity
	Type   fact.MediaType
}

// Key returns the (entity, type) key this address falls within.
func (a Address) Key() FactKey {
	return FactKey{Entity: a.Entity, Type: a.Type}
}

// sameFact reports whether two addresses name the same (space, entity,
// type), ignoring path.
func sameFact(a, b Address) bool {
	return a.Space == b.Space && a.Entity == b.Entity && a.Type == b.Type
}

// Includes reports whether a includes b: same underlying fact, and a's
// path is a prefix of b's path. A value read/written at a therefore
// determines the value at b.
func Includes(a, b Address) bool {
	return sameFact(a, b) && b.Path.HasPrefix(a.Path)
}

// Intersects reports whether a and b name overlapping regions of the
// same fact: either includes the other.
func Intersects(a, b Address) bool {
	return Includes(a, b) || Includes(b, a)
}

// Attestation is the claim that the subtree of (address.Entity,
// address.Type) rooted at address.Path equals Value.
type Attestation struct {
	Address Address
	Value   fact.JsonValue
}

// Relative returns the path of b relative to a, assuming Includes(a, b).
// Used to rebase a subsumed read/write onto the attestation that covers
// it.
func Relative(a, b Address) Path {
	return Path(b.Path[len(a.Path):])
}

// ParseIndex parses a path segment as an array index, reporting ok=false
// if it is not a valid non-negative decimal integer.
func ParseIndex(segment Segment) (int, bool) {
	n, err := strconv.Atoi(segment)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
