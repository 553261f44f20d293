/*
Package replica implements the per-space coordinator: it owns the heap
and nursery, pulls and pushes through a transport.Consumer, merges
server-driven subscription pushes back into the heap, and relays every
state change through a notify.Relay.

	┌────────────────────────── Replica ──────────────────────────┐
	│                                                               │
	│   push(edit)  ──▶ nursery.Put ──▶ consumer.Transact ──▶       │
	│                       │                  │                   │
	│                  commit notify      heap.Promote on ack      │
	│                                      revert notify on reject │
	│                                                               │
	│   pull/load(selectors) ──▶ consumer.Query/Subscribe ──▶       │
	│                       │                                      │
	│                  heap.Merge ──▶ pull/load notify              │
	│                                                               │
	│   integrate(revisions) ──▶ pending-cause filter ──▶            │
	│                       │                                      │
	│                  heap.Merge ──▶ integrate notify               │
	└───────────────────────────────────────────────────────────────┘

A Replica implements chronicle.Loader, so a Chronicle can read through
it without either package importing the other's concrete type.
*/
package replica
