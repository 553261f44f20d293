package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/commontoolsinc/memory/pkg/cache"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/replica"
	"github.com/commontoolsinc/memory/pkg/transport"
	"github.com/commontoolsinc/memory/pkg/txn"
	"github.com/google/uuid"
)

// Session is the top-level handle a caller constructs once and shares
// across every space it touches. It satisfies txn.SpaceResolver, so
// transactions opened against it never import pkg/transport or
// pkg/replica themselves.
type Session struct {
	config Config
	relay  *notify.Relay
	cache  *cache.Store

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	consumers map[fact.Space]transport.Consumer
	replicas  map[fact.Space]*replica.Replica
	closed    bool
}

// New opens a Session. The background context it derives governs every
// space's subscription to its own commit-head log; cancel it via Close.
func New(cfg Config) (*Session, error) {
	var store *cache.Store
	if cfg.DataDir != "" {
		var err error
		store, err = cache.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("engine: opening cache: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		config:    cfg,
		relay:     notify.NewRelay(),
		cache:     store,
		ctx:       ctx,
		cancel:    cancel,
		consumers: make(map[fact.Space]transport.Consumer),
		replicas:  make(map[fact.Space]*replica.Replica),
	}, nil
}

// Relay is the shared notify.Relay every space's Replica publishes to.
func (s *Session) Relay() *notify.Relay {
	return s.relay
}

// Replica returns the memoized Replica for space, opening its transport
// Consumer and running Replica.Listen (the commit-head subscription plus
// reconnect hook) on first use. It satisfies txn.SpaceResolver.
func (s *Session) Replica(space fact.Space) (txn.ReplicaAccess, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("engine: session is closed")
	}
	if r, ok := s.replicas[space]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	consumer, err := s.dial(space)
	if err != nil {
		return nil, err
	}

	r := replica.New(space, consumer, s.relay, s.cache)

	s.mu.Lock()
	if existing, ok := s.replicas[space]; ok {
		s.mu.Unlock()
		_ = consumer.Close()
		return existing, nil
	}
	s.consumers[space] = consumer
	s.replicas[space] = r
	s.mu.Unlock()

	if err := r.Listen(s.ctx); err != nil {
		log.WithSpace(string(space)).Warn().Err(err).Msg("failed to open commit-head subscription")
	}
	return r, nil
}

// Synced blocks until every in-flight server query and pending
// subscription snapshot on spaces has resolved, or ctx is done. With no
// spaces given it waits across every space this Session has opened a
// Replica for. It is the caller-visible "synced" barrier of spec.md §5.
func (s *Session) Synced(ctx context.Context, spaces ...fact.Space) error {
	s.mu.Lock()
	var replicas []*replica.Replica
	if len(spaces) == 0 {
		replicas = make([]*replica.Replica, 0, len(s.replicas))
		for _, r := range s.replicas {
			replicas = append(replicas, r)
		}
	} else {
		for _, space := range spaces {
			if r, ok := s.replicas[space]; ok {
				replicas = append(replicas, r)
			}
		}
	}
	s.mu.Unlock()

	for _, r := range replicas {
		if err := r.Synced(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) dial(space fact.Space) (transport.Consumer, error) {
	if s.config.IsLocal() {
		return transport.NewLocal(space), nil
	}
	return transport.NewRemote(s.config.APIURL, space, s.config.Sign)
}

// NewTransaction opens a txn.Transaction against this Session, tagged
// with id as its notification Source. An empty id is replaced with a
// freshly generated one, so callers that don't care about correlating
// notifications back to a caller-chosen handle don't have to invent one.
func (s *Session) NewTransaction(id string) *txn.Transaction {
	if id == "" {
		id = uuid.NewString()
	}
	return txn.New(id, s)
}

// Close cancels every space's commit-head subscription, closes each
// transport Consumer and the cache, and stops the relay's dispatch loop.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	consumers := make([]transport.Consumer, 0, len(s.consumers))
	for _, c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.mu.Unlock()

	s.cancel()

	var firstErr error
	for _, c := range consumers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.relay.Stop()
	return firstErr
}
