/*
Package engine provides Session, the single top-level object a caller
constructs to use the storage engine: one notify.Relay shared by every
space, an optional cache.Store, and lazily-opened (Replica, Consumer)
pairs, one per space touched so far.

	┌────────────────────────────── Session ──────────────────────────────┐
	│                                                                       │
	│  Replica(space)  (memoized) ──▶ transport.New{Local,Remote} ──▶       │
	│                       │                   Replica.Listen              │
	│                  cache.Store (shared, optional)                       │
	│                  notify.Relay (shared)                                │
	│                                                                       │
	│  NewTransaction(id) ──▶ txn.New(id, session)                          │
	└───────────────────────────────────────────────────────────────────────┘

Session implements txn.SpaceResolver directly, so a Transaction opened
against a Session never needs to know how a space's Replica was
constructed or whether it is backed by the remote or local transport.
*/
package engine
