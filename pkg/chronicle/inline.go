package chronicle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

const inlinePrefix = "data:"

// isInline reports whether addr names a data: URI rather than a stored
// fact. Inline addresses are read-only: their value is decoded from the
// URI itself and never touches the replica.
func isInline(addr address.Address) bool {
	return strings.HasPrefix(string(addr.Entity), inlinePrefix)
}

// decodeInline parses a data: URI address of the form
// "data:<media-type>,<payload>" and decodes payload according to
// addr.Type, which must agree with the media type embedded in the URI.
// application/json payloads are parsed; any other media type is
// returned as an opaque string.
func decodeInline(addr address.Address) (fact.JsonValue, error) {
	raw := string(addr.Entity)
	body := strings.TrimPrefix(raw, inlinePrefix)
	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataURI, raw)
	}
	mediaType, payload := body[:comma], body[comma+1:]

	switch fact.MediaType(mediaType) {
	case "application/json":
		var value fact.JsonValue
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataURI, raw, err)
		}
		resolved, err := address.Get(value, addr.Path)
		if err != nil {
			return nil, fmt.Errorf("chronicle: resolving inline address %s: %w", raw, err)
		}
		return resolved, nil
	case "":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, raw)
	default:
		if len(addr.Path) > 0 {
			return nil, &TypeMismatchError{Address: addr, Reason: "opaque media type has no sub-paths"}
		}
		return payload, nil
	}
}
