package replica

import "fmt"

// ConnectionError wraps a transport failure observed during push, pull,
// or watch. Per spec.md §7 it propagates to the caller and, for the
// remote transport, also drives a reconnect — the reconnect itself is
// the transport's concern, not the Replica's.
type ConnectionError struct {
	Op    string
	Space string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("replica: %s(%s): %s", e.Op, e.Space, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
