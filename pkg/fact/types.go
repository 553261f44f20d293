package fact

import "fmt"

// Entity is an opaque URI-like identifier for a thing in a memory space.
type Entity string

// MediaType tags the shape of a fact's value, e.g. "application/json",
// "application/label+json", or the reserved "application/commit+json".
type MediaType string

// CommitMediaType is the media type under which a space's commit log is
// itself stored, so it can be read and subscribed to like any other fact.
const CommitMediaType MediaType = "application/commit+json"

// Space is an opaque DID naming a logical replica boundary.
type Space string

// JsonValue is an arbitrary JSON tree: the storage payload. It is stored
// as a Go value (map[string]any, []any, string, float64, bool, nil, or a
// json.Number-free numeric type) and must be normalizable by Canonicalize.
type JsonValue = any

// Version is a monotonically increasing integer assigned by the server on
// commit. Within one space it totally orders commits.
type Version int64

// UnknownSince marks a locally synthesized placeholder revision standing
// in for "known absent" rather than a real server-observed revision.
const UnknownSince Version = -1

// Kind discriminates the three fact lifecycle variants.
type Kind string

const (
	KindUnclaimed  Kind = "unclaimed"
	KindAssertion  Kind = "assertion"
	KindRetraction Kind = "retraction"
)

// Fact is the triple (entity, media-type) -> JSON, in one of its three
// lifecycle states. Value is only meaningful when Kind == KindAssertion.
// Cause is the zero Reference for an Unclaimed fact or for the very first
// assertion/retraction of an (entity, type) pair.
type Fact struct {
	Kind   Kind      `json:"kind"`
	Entity Entity    `json:"entity"`
	Type   MediaType `json:"type"`
	Value  JsonValue `json:"value,omitempty"`
	Cause  Reference `json:"cause,omitempty"`
}

// Unclaimed builds the synthetic fact standing in for an (entity, type)
// that has never been observed.
func Unclaimed(entity Entity, kind MediaType) Fact {
	return Fact{Kind: KindUnclaimed, Entity: entity, Type: kind}
}

// Assert builds an assertion fact carrying value, built upon cause (the
// zero Reference if this is the first assertion for entity/type).
func Assert(entity Entity, kind MediaType, value JsonValue, cause Reference) Fact {
	return Fact{Kind: KindAssertion, Entity: entity, Type: kind, Value: value, Cause: cause}
}

// Retract builds a retraction fact built upon cause.
func Retract(entity Entity, kind MediaType, cause Reference) Fact {
	return Fact{Kind: KindRetraction, Entity: entity, Type: kind, Cause: cause}
}

// HasValue reports whether the fact carries a value, i.e. is an assertion.
func (f Fact) HasValue() bool {
	return f.Kind == KindAssertion
}

// IsUnclaimed reports whether the fact has never been observed.
func (f Fact) IsUnclaimed() bool {
	return f.Kind == KindUnclaimed
}

func (f Fact) String() string {
	switch f.Kind {
	case KindAssertion:
		return fmt.Sprintf("assert(%s %s <- %s)", f.Entity, f.Type, f.Cause)
	case KindRetraction:
		return fmt.Sprintf("retract(%s %s <- %s)", f.Entity, f.Type, f.Cause)
	default:
		return fmt.Sprintf("unclaimed(%s %s)", f.Entity, f.Type)
	}
}

// Revision is a fact as observed at a particular commit version. Since ==
// UnknownSince marks an absence placeholder rather than a real commit.
type Revision struct {
	Fact  Fact    `json:"fact"`
	Since Version `json:"since"`
}

// IsPlaceholder reports whether this revision is a synthesized "known
// absent" marker rather than a server-observed fact.
func (r Revision) IsPlaceholder() bool {
	return r.Since == UnknownSince
}

// StoredFact pairs a fact with the content hash of its canonical form, as
// persisted inside a Commit.
type StoredFact struct {
	Fact Fact      `json:"fact"`
	Hash Reference `json:"hash"`
}

// Commit is the server-assigned record of one push: the version it was
// given, the facts it carries, and the hash of the prior commit (its
// causal parent in the space's own commit chain). The commit itself is
// stored as a fact of type CommitMediaType, entity == the space's DID, so
// it can be read and subscribed to like any other fact.
type Commit struct {
	Version Version      `json:"version"`
	Facts   []StoredFact `json:"facts"`
	Parent  Reference    `json:"parent,omitempty"`
}
