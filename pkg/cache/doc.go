/*
Package cache provides an optional, durable, local mirror of revisions a
replica has observed, keyed by (space, entity, type). It exists purely as
an accelerator: a missing or unopened cache is semantically equivalent to
one that always reports a miss, so callers never need a nil check before
using a *Store — a nil *Store is valid and behaves as an always-empty
cache.

Persistence is bbolt, one bucket per space, following the same
bucket-per-collection layout used elsewhere in this codebase for
durable local state.
*/
package cache
