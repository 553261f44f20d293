/*
Package txn implements the Storage Transaction handle: the user-facing
object a caller opens to read and write facts across one or more spaces.

	┌───────────────────────── Transaction ─────────────────────────┐
	│                                                                 │
	│  reader(space)  (memoized) ──▶ Chronicle.Read ──▶ ReplicaAccess │
	│  writer(space)  (memoized, binds write isolation)               │
	│                       │                                        │
	│                  Chronicle.Write                                │
	│                                                                 │
	│  commit() (idempotent) ──▶ Chronicle.Settle ──▶ ReplicaAccess.Push │
	│  abort(reason) ──▶ later calls fail                              │
	└─────────────────────────────────────────────────────────────────┘

A reader may be opened against any space; the first writer() call binds
the transaction's write isolation to that space, and a writer() call for
a different space fails with WriteIsolationError. A Transaction never
imports pkg/replica directly — it depends only on the narrow
ReplicaAccess interface, mirroring how pkg/chronicle depends only on
Loader.
*/
package txn
