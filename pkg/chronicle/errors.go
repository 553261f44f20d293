package chronicle

import (
	"errors"
	"fmt"

	"github.com/commontoolsinc/memory/pkg/address"
)

// Sentinel errors a Chronicle operation can return. Callers match with
// errors.Is; InconsistencyError and TypeMismatchError carry extra context
// and are matched with errors.As.
var (
	ErrInvalidDataURI  = errors.New("chronicle: invalid data uri")
	ErrUnsupportedType = errors.New("chronicle: unsupported media type")
	ErrNotFound        = errors.New("chronicle: not found")
	ErrTypeMismatch    = errors.New("chronicle: type mismatch")
	ErrReadOnlyAddress = errors.New("chronicle: address is read-only")
)

// InconsistencyError reports that a later read or a commit-time rebase
// contradicted an earlier history claim at the given address.
type InconsistencyError struct {
	Address address.Address
	Reason  string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("chronicle: inconsistent read at %s: %s", e.Address, e.Reason)
}

// NotFoundError pins the address a NotFound failure occurred at.
type NotFoundError struct {
	Address address.Address
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("chronicle: not found: %s", e.Address)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TypeMismatchError pins the address a TypeMismatch failure occurred at.
type TypeMismatchError struct {
	Address address.Address
	Reason  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("chronicle: type mismatch at %s: %s", e.Address, e.Reason)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
