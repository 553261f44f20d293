/*
Package wire defines the JSON shapes exchanged with the remote memory
server: the four command abilities (/memory/transact, /memory/query,
/memory/query/subscribe, /memory/query/unsubscribe), their request and
response bodies, and the signed command envelope and duplex frame format
the transport layer sends them inside.

Identity and signing are an external collaborator (see spec.md §1); this
package treats a signed command as an opaque envelope carrying whatever
bytes the signer produced, and never inspects or verifies them itself.
*/
package wire
