package replica

import (
	"context"

	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/commontoolsinc/memory/pkg/transport"
)

// Listen opens the replica's unconditional subscription to its own
// commit log (so the heap's notion of the space's head is always live)
// and, if the consumer can reconnect out from under the caller, installs
// the reconnect sequence of spec.md §4.6: poll the commit log, reset,
// then re-issue whatever schema subscriptions survive in TrackedSchemas
// (plus the unconditional commit-head subscription itself).
func (r *Replica) Listen(ctx context.Context) error {
	if notifier, ok := r.consumer.(transport.ReconnectNotifier); ok {
		notifier.SetReconnectHandler(func(count int) {
			r.onReconnect(ctx, count)
		})
	}
	return r.Watch(ctx, transport.CommitHeadSelector(r.space))
}

// onReconnect runs after the transport has redialed and drained its
// queue: it re-polls the commit head, resets local state (dropping heap,
// nursery, and selector tracking), and re-issues every schema
// subscription that was tracked before the reset, per property 7 of
// spec.md §8.
func (r *Replica) onReconnect(ctx context.Context, count int) {
	log.WithSpace(string(r.space)).Info().Int("attempt", count).Msg("transport reconnected, resetting replica")

	if err := r.Poll(ctx); err != nil {
		log.WithSpace(string(r.space)).Warn().Err(err).Msg("failed to poll commit head before reset")
	}

	schemas := r.TrackedSchemas()
	r.Reset()

	if err := r.Watch(ctx, transport.CommitHeadSelector(r.space)); err != nil {
		log.WithSpace(string(r.space)).Error().Err(err).Msg("failed to re-establish commit-head subscription after reconnect")
	}
	for _, sel := range schemas {
		sel := sel
		go func() {
			if err := r.Watch(ctx, sel); err != nil {
				log.WithSpace(string(r.space)).Error().Err(err).Msg("failed to re-issue schema subscription after reconnect")
			}
		}()
	}
}
