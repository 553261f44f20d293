/*
Package log provides structured logging for the replica core using
zerolog: component-scoped child loggers, configurable level and output,
and a handful of helpers for the contexts this codebase logs most often
(space, entity, subscription).

# Architecture

	┌────────────── LOGGING ──────────────┐
	│  Global Logger (zerolog, Init once)  │
	│        │                             │
	│  WithComponent / WithSpace /          │
	│  WithEntity / WithSubscription        │
	│        │                             │
	│  JSON or console output               │
	└───────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	replicaLog := log.WithComponent("replica").With().Str("space", string(space)).Logger()
	replicaLog.Info().Int("version", int(version)).Msg("commit integrated")

	log.WithSubscription(subscriptionID).Warn().Msg("reconnect exhausted retries")

Errors are always logged with .Err(err), never string-concatenated, so
downstream log processors can filter on the error field without parsing
message text.

# Level guidance

Debug traces individual fact reads/writes; Info covers commit/reconnect/
subscription lifecycle events; Warn covers recoverable anomalies
(conflict, stale cache read); Error is reserved for conditions a caller
could not route around (transport exhausted retries, storage corrupt).
Fatal is not used by this package's own code — a client library should
never decide to exit the host process.
*/
package log
