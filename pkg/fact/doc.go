/*
Package fact defines the primitive types of the memory model: entities,
media types, spaces, content-addressed references, and the three fact
lifecycle variants (unclaimed, assertion, retraction) they compose into.

# Fact lifecycle

A fact over (Entity, MediaType) is exactly one of:

  - Unclaimed: never yet observed; treated as absent.
  - Assertion: carries a value and a cause reference to the fact it was
    built upon (zero Reference for the first assertion of an entity/type).
  - Retraction: carries no value, only a cause; it still participates in
    the causal chain so a later assertion can build on it.

A Revision wraps a fact with the commit version at which a replica
observed it. Since == -1 marks a locally synthesized "known absent"
placeholder rather than a real server-acknowledged revision.

# Content addressing

Reference is a merkle hash over the canonical serialization of a fact:
key-sorted JSON, NaN normalized to null, undefined fields stripped. Equal
references imply equal content. The hash is not a security boundary (no
adversary controls what goes into it from inside this process), so a
fast non-cryptographic digest (xxhash) is used rather than a
cryptographic one.
*/
package fact
