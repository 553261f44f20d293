package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/chronicle"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// ReplicaAccess is the view of a per-space Replica a Transaction and its
// callers need: reading through the Chronicle's Loader contract, pushing
// a settled edit back out on commit, and the two remote-hydration
// operations spec.md §4.2 names alongside them — a one-shot `load`
// (`Pull`) and a schema-aware reactive subscription (`Watch`). It is an
// interface, not the concrete *replica.Replica, so this package and
// pkg/replica never import one another.
type ReplicaAccess interface {
	chronicle.Loader
	Push(ctx context.Context, edit chronicle.Edit, source string) (*fact.Commit, error)
	Pull(ctx context.Context, sel wire.Selector) error
	Watch(ctx context.Context, sel wire.Selector) error
}

// SpaceResolver opens (or returns an already-open) ReplicaAccess for a
// space. The engine façade implements this by owning one Replica per
// space.
type SpaceResolver interface {
	Replica(space fact.Space) (ReplicaAccess, error)
}

type lifecycle int

const (
	lifecycleActive lifecycle = iota
	lifecycleAborted
	lifecycleCommitted
)

// Transaction is the user-facing handle opened against a SpaceResolver.
// A reader may be opened for any space; only one space may ever be
// bound as this transaction's writer (write isolation).
type Transaction struct {
	id       string
	resolver SpaceResolver

	mu          sync.Mutex
	state       lifecycle
	abortReason string

	chronicles map[fact.Space]*chronicle.Chronicle
	access     map[fact.Space]ReplicaAccess
	readers    map[fact.Space]*TransactionReader
	writer     *TransactionWriter
	writeSpace fact.Space
	hasWriter  bool

	commitOnce   sync.Once
	commitResult *fact.Commit
	commitErr    error
}

// New opens a Transaction identified by id — used as the notification
// Source tag on its eventual commit/revert — against resolver.
func New(id string, resolver SpaceResolver) *Transaction {
	return &Transaction{
		id:         id,
		resolver:   resolver,
		chronicles: make(map[fact.Space]*chronicle.Chronicle),
		access:     make(map[fact.Space]ReplicaAccess),
		readers:    make(map[fact.Space]*TransactionReader),
	}
}

// ID is the handle identity tagged onto this transaction's commit/revert
// notifications.
func (t *Transaction) ID() string { return t.id }

func (t *Transaction) checkActive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case lifecycleAborted:
		return &StorageTransactionAbortedError{Reason: t.abortReason}
	case lifecycleCommitted:
		return &StorageTransactionCompleteError{}
	default:
		return nil
	}
}

// chronicleFor returns the memoized Chronicle and ReplicaAccess for
// space, resolving a new ReplicaAccess on first use. Must not be called
// while holding t.mu.
func (t *Transaction) chronicleFor(space fact.Space) (*chronicle.Chronicle, ReplicaAccess, error) {
	t.mu.Lock()
	if c, ok := t.chronicles[space]; ok {
		a := t.access[space]
		t.mu.Unlock()
		return c, a, nil
	}
	t.mu.Unlock()

	access, err := t.resolver.Replica(space)
	if err != nil {
		return nil, nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.chronicles[space]; ok {
		return c, t.access[space], nil
	}
	c := chronicle.New()
	t.chronicles[space] = c
	t.access[space] = access
	return c, access, nil
}

// Reader returns the memoized read handle for space. Readers may be
// opened for any number of distinct spaces regardless of which (if any)
// is bound as this transaction's writer.
func (t *Transaction) Reader(space fact.Space) (*TransactionReader, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	if _, _, err := t.chronicleFor(space); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.readers[space]; ok {
		return r, nil
	}
	r := &TransactionReader{txn: t, space: space}
	t.readers[space] = r
	return r, nil
}

// Writer returns the memoized write handle for space. The first
// successful call binds this transaction's write isolation to space; a
// later call naming a different space fails with WriteIsolationError
// and mutates no state.
func (t *Transaction) Writer(space fact.Space) (*TransactionWriter, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.hasWriter {
		bound, w := t.writeSpace, t.writer
		t.mu.Unlock()
		if bound != space {
			return nil, &WriteIsolationError{Bound: string(bound), Requested: string(space)}
		}
		return w, nil
	}
	t.mu.Unlock()

	if _, _, err := t.chronicleFor(space); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasWriter {
		if t.writeSpace != space {
			return nil, &WriteIsolationError{Bound: string(t.writeSpace), Requested: string(space)}
		}
		return t.writer, nil
	}
	w := &TransactionWriter{txn: t, space: space}
	t.writer = w
	t.writeSpace = space
	t.hasWriter = true
	return w, nil
}

// Read is the convenience form of Reader(addr.Space).Read(addr).
func (t *Transaction) Read(addr address.Address) (fact.JsonValue, error) {
	r, err := t.Reader(addr.Space)
	if err != nil {
		return nil, err
	}
	return r.Read(addr)
}

// Write is the convenience form of Writer(addr.Space).Write(addr, value).
func (t *Transaction) Write(addr address.Address, value fact.JsonValue) error {
	w, err := t.Writer(addr.Space)
	if err != nil {
		return err
	}
	return w.Write(addr, value)
}

func (t *Transaction) readIn(space fact.Space, addr address.Address) (fact.JsonValue, error) {
	if addr.Space != space {
		return nil, fmt.Errorf("txn: address space %q does not match reader space %q", addr.Space, space)
	}
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	c, access, err := t.chronicleFor(space)
	if err != nil {
		return nil, err
	}
	return c.Read(access, addr)
}

func (t *Transaction) writeIn(space fact.Space, addr address.Address, value fact.JsonValue) error {
	if addr.Space != space {
		return fmt.Errorf("txn: address space %q does not match writer space %q", addr.Space, space)
	}
	if err := t.checkActive(); err != nil {
		return err
	}
	c, access, err := t.chronicleFor(space)
	if err != nil {
		return err
	}
	return c.Write(access, addr, value)
}

// Abort closes the transaction; later reads/writes/commit calls fail
// with StorageTransactionAbortedError. Aborting an already-completed or
// already-aborted transaction is a no-op.
func (t *Transaction) Abort(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != lifecycleActive {
		return
	}
	t.state = lifecycleAborted
	t.abortReason = reason
}

// Commit closes the journal for this transaction's bound write space (if
// any) and pushes its settled edit through that space's ReplicaAccess.
// It is idempotent: only the first call does any work, and every call —
// first or repeated — returns that first call's cached result, matching
// spec.md §4.4's "idempotent (cached promise)" commit semantics. A
// transaction with no writer bound commits as a no-op success.
func (t *Transaction) Commit(ctx context.Context) (*fact.Commit, error) {
	t.commitOnce.Do(func() {
		t.commitResult, t.commitErr = t.doCommit(ctx)
	})
	return t.commitResult, t.commitErr
}

func (t *Transaction) doCommit(ctx context.Context) (*fact.Commit, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	space, hasWriter := t.writeSpace, t.hasWriter
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.state = lifecycleCommitted
		t.mu.Unlock()
	}()

	if !hasWriter {
		return nil, nil
	}

	c, access, err := t.chronicleFor(space)
	if err != nil {
		return nil, err
	}

	edit, err := c.Settle(access)
	if err != nil {
		return nil, err
	}

	return access.Push(ctx, edit, t.id)
}
