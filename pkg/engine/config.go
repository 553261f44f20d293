package engine

import (
	"os"
	"strings"

	"github.com/commontoolsinc/memory/pkg/transport"
)

// localScheme marks an API URL that should be served by the in-process
// local transport instead of dialing a remote websocket — the
// "memory:" override mentioned in TOOLSHED_API_URL's contract, used for
// local development and tests against no real server.
const localScheme = "memory:"

// Config wires a Session's transport, persistence, and signing.
type Config struct {
	// APIURL is the toolshed websocket endpoint, e.g.
	// "wss://toolshed.example.com/api/storage/memory". A value with the
	// "memory:" scheme bypasses the network entirely and opens an
	// in-process local.Consumer per space instead.
	APIURL string

	// DataDir, if non-empty, opens a bbolt-backed cache.Store rooted
	// there. Empty disables local persistence (Session.cache stays nil,
	// which is a valid, always-miss cache).
	DataDir string

	// Sign authenticates outgoing commands on the remote transport. Not
	// consulted when APIURL uses the local scheme.
	Sign transport.Signer
}

// IsLocal reports whether this configuration should use the in-process
// transport rather than dialing APIURL.
func (c Config) IsLocal() bool {
	return strings.HasPrefix(c.APIURL, localScheme)
}

// ConfigFromEnv reads TOOLSHED_API_URL (defaulting to the local
// in-process transport when unset, so a bare `go test`/`storagectl`
// invocation works with no server running) and TOOLSHED_DATA_DIR.
func ConfigFromEnv() Config {
	apiURL := os.Getenv("TOOLSHED_API_URL")
	if apiURL == "" {
		apiURL = localScheme + "local"
	}
	return Config{
		APIURL:  apiURL,
		DataDir: os.Getenv("TOOLSHED_DATA_DIR"),
	}
}
