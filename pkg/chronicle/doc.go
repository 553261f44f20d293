/*
Package chronicle implements the per-transaction, per-space read/write
journal: History (an ordered record of what was read at which path) and
Novelty (pending writes, merged per (entity, type) into a single root so
N writes cost O(path-depth) rather than O(N)).

A Chronicle is exclusively owned by one transaction's reader/writer pair
for one space; it borrows a read-only view of a replica (via the Loader
interface, so the package does not import replica and create a cycle)
and produces a commit edit (facts plus read claims) when asked to settle.
*/
package chronicle
