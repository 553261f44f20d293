package store

import (
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Put implements the Heap/Nursery merge predicate: if either side is
// absent, the other wins outright; otherwise the revision with the
// higher Since wins, with local preferred on a tie (local.Since >=
// remote.Since keeps local, matching the monotonic-revisions invariant).
func Put(local, remote *fact.Revision) fact.Revision {
	if local == nil && remote == nil {
		return fact.Revision{}
	}
	if local == nil {
		return *remote
	}
	if remote == nil {
		return *local
	}
	if local.Since >= remote.Since {
		return *local
	}
	return *remote
}

// Update implements the server-driven-refresh predicate: like Put, but
// when either side is absent it returns local unchanged. This is used
// when refreshing facts the replica already believes are present — an
// absent remote (or absent local) must never be allowed to clobber
// known-present state via this path.
func Update(local, remote *fact.Revision) fact.Revision {
	if local == nil || remote == nil {
		if local != nil {
			return *local
		}
		return fact.Revision{}
	}
	if local.Since >= remote.Since {
		return *local
	}
	return *remote
}

// Evict reports whether a nursery entry observed as `before` may be
// retired now that the heap holds `after`: true once the heap's
// serialized value has caught up with what the nursery was shadowing.
func Evict(before, after fact.Revision) bool {
	return fact.HashFact(before.Fact).Equal(fact.HashFact(after.Fact))
}
