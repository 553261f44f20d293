/*
Package store implements the fact store: the Heap (committed local
truth) and Nursery (optimistic shadow of in-flight writes) a Replica
owns, plus the merge predicates used to fold remote revisions into them.

	┌─────────────────────── FACT STORE ────────────────────────┐
	│                                                             │
	│   ┌───────────────┐        ┌───────────────┐              │
	│   │    Nursery     │        │     Heap       │              │
	│   │  optimistic    │        │  committed     │              │
	│   │  (entity,type) │        │  (entity,type) │              │
	│   │  -> Revision   │        │  -> Revision   │              │
	│   │                │        │                │              │
	│   │  + outstanding │        │                │              │
	│   │    cause index │        │                │              │
	│   └───────┬───────┘        └───────┬───────┘              │
	│           │   read: nursery ?? heap ?? unclaimed(-1)        │
	│           └────────────────┬────────────────┘              │
	│                            ▼                                │
	│                    per-fact subscribers                     │
	└───────────────────────────────────────────────────────────┘

Both containers key on address.FactKey (entity, type) — path granularity
is the Chronicle's concern, not the store's. Merge predicates:

  - Put(local, remote): if either side is absent, return the other; else
    keep whichever has the higher Since.
  - Update(local, remote): like Put, but returns local (unchanged) when
    either side is absent — used to refresh a fact the replica already
    knows is present, without letting a stale "absent" overwrite it.
  - Evict(before, after): true once a nursery entry can be retired
    because the heap has caught up to an equal serialized value.

A revision with Since == fact.UnknownSince is a placeholder for "known
absent" and never fires subscribers on merge.
*/
package store
