package fact

import (
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// referenceEncoding is unpadded base32, matching the "base32-digest" shape
// spec'd for the wire form of a Reference.
var referenceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Reference is a content-addressed merkle hash over a fact's canonical
// form. Two facts whose canonical forms are byte-identical hash to equal
// References. It serializes on the wire as {"/": "<base32-digest>"}.
type Reference struct {
	digest string
}

// IsZero reports whether this is the zero Reference, used as the Cause of
// the first assertion/retraction for an (entity, type) pair.
func (r Reference) IsZero() bool {
	return r.digest == ""
}

func (r Reference) String() string {
	if r.IsZero() {
		return "-"
	}
	return r.digest
}

// Equal reports whether two references name the same content.
func (r Reference) Equal(other Reference) bool {
	return r.digest == other.digest
}

type referenceWire struct {
	Digest string `json:"/"`
}

// MarshalJSON renders a Reference as {"/": "<digest>"}, or null when zero.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(referenceWire{Digest: r.digest})
}

// UnmarshalJSON accepts {"/": "<digest>"} or null.
func (r *Reference) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reference{}
		return nil
	}
	var wire referenceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("fact: invalid reference: %w", err)
	}
	r.digest = wire.Digest
	return nil
}

// ParseReference reconstructs a Reference from its base32 digest string,
// the inverse of Digest.
func ParseReference(digest string) Reference {
	if digest == "" {
		return Reference{}
	}
	return Reference{digest: digest}
}

// Digest returns the reference's base32 digest string, or "" for the zero
// reference.
func (r Reference) Digest() string {
	return r.digest
}

// Canonicalize normalizes a JSON value for hashing and wire transmission:
// object keys are sorted, NaN/Inf floats become nil (JSON has no spelling
// for them), and the result only contains types encoding/json already
// round-trips losslessly.
func Canonicalize(value JsonValue) JsonValue {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = Canonicalize(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = Canonicalize(child)
		}
		return out
	default:
		return v
	}
}

// canonicalBytes renders value as key-sorted, NaN-normalized JSON. Go's
// encoding/json already sorts map[string]any keys during Marshal, so
// canonicalization plus a single Marshal is sufficient for a stable byte
// form.
func canonicalBytes(value JsonValue) ([]byte, error) {
	return json.Marshal(Canonicalize(value))
}

// HashValue computes the content Reference of a bare JSON value, ignoring
// entity/type/cause. Used by the Replica to key its selector tracker and
// tracked-schema map by selector content.
func HashValue(value JsonValue) Reference {
	data, err := canonicalBytes(value)
	if err != nil {
		// Canonicalize only ever produces encoding/json-safe types, so a
		// Marshal failure here indicates a caller smuggled in something
		// pathological (a channel, a func). Fall back to a digest of the
		// Go-syntax representation so hashing never panics.
		data = []byte(fmt.Sprintf("%#v", value))
	}
	return Reference{digest: digestBytes(data)}
}

// HashFact computes the content Reference of a whole fact: its kind,
// entity, type, value, and cause all participate, so two assertions with
// identical values but different causes hash differently.
func HashFact(f Fact) Reference {
	valueBytes, err := canonicalBytes(f.Value)
	if err != nil {
		valueBytes = []byte(fmt.Sprintf("%#v", f.Value))
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", f.Kind, f.Entity, f.Type)
	h.Write(valueBytes)
	h.Write([]byte{0})
	h.Write([]byte(f.Cause.digest))
	sum1 := h.Sum64()

	// A second pass with the digest of the first as a salt widens the
	// digest to 128 bits, keeping accidental collisions implausible
	// without reaching for a cryptographic hash this value never needs.
	h2 := xxhash.New()
	binary.Write(h2, binary.LittleEndian, sum1)
	h2.Write(valueBytes)
	sum2 := h2.Sum64()

	return Reference{digest: encodeDigest(sum1, sum2)}
}

func digestBytes(data []byte) string {
	sum1 := xxhash.Sum64(data)
	h2 := xxhash.New()
	binary.Write(h2, binary.LittleEndian, sum1)
	h2.Write(data)
	sum2 := h2.Sum64()
	return encodeDigest(sum1, sum2)
}

func encodeDigest(a, b uint64) string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], a)
	binary.BigEndian.PutUint64(buf[8:16], b)
	return referenceEncoding.EncodeToString(buf[:])
}
