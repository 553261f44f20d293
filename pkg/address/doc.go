/*
Package address implements memory addresses, attestations, and the
path-prefix predicates the Chronicle uses to detect read subsumption and
write merging.

A Memory Address is {space, entity, type, path}. A path of [] addresses
the whole fact value; a longer path addresses descendant JSON. Paths do
not name array "length" — that is a language-specific view, not data.

Address inclusion and intersection are defined purely in terms of the
(entity, type) pair and path-segment prefixing:

  - address1 includes address2 iff same (entity, type) and address1.Path
    is a prefix of address2.Path.
  - two addresses intersect iff either includes the other.

These two predicates drive history subsumption (a later read of a deeper
path can be answered from an earlier read of a shallower path) and
novelty merging (writes at disjoint paths merge into one root; a write at
a path already covered by a pending write is rebased onto it) in package
chronicle.
*/
package address
