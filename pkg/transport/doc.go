/*
Package transport implements the Consumer interface a Replica pushes
writes through and pulls/subscribes reads from: two interchangeable
backends, a framed websocket client (remote) and a synchronous
in-process executor (local), selected by the memory: / ws(s): scheme of
the configured URL (see pkg/engine).

Remote reconnect, queueing, and re-subscription are handled here so
higher layers never observe a dropped socket as anything more than
increased latency: commands queue while disconnected and drain before
the reader loop resumes, and every tracked subscription is re-issued
after a reconnect.
*/
package transport
