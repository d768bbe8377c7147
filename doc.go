// Package wamp provides the shared protocol error model for the WAMP v1
// session runtime.
//
// The module implements the core of a WAMP v1 peer suitable for embedding in
// clients and intra-process routers:
//
//   - message: the nine-variant message model and its JSON-array codec.
//   - callable: weak-receiver callbacks used by every registry in the module.
//   - pubsub: named in-process publish/subscribe buses with exclude/eligible
//     filtering.
//   - session: the per-peer state machine that dispatches incoming messages
//     into procedure invocations, subscription mutations, and hook deliveries.
//   - executor: a fixed-size worker pool for callers that want deferred or
//     future-based message handling.
//   - transport/ws: a WebSocket adapter that bridges a session to the wire.
//
// This package holds only what every other package shares: the Error type
// carried by CALLERROR responses, the well-known error URIs, and the
// ErrHookMissing sentinel.
package wamp
