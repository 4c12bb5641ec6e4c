// Package feed connects to one push-stream endpoint per feed and turns its
// raw websocket messages into normalized arrival events for the engine.
//
// adapter.go extracts the correlation key from a decoded payload. The key
// field's name is feed-specific; its semantics (a monotonically increasing
// update sequence number) must be identical across both feeds, which is the
// premise that makes cross-feed correlation meaningful. Subscription
// acknowledgments are recognized and dropped without touching statistics;
// malformed payloads bump a decode-failure counter and the reader moves on.
//
// client.go owns the connection lifecycle: dial with bounded retry, send the
// subscribe request once, stamp each inbound message with the local receive
// time, and reconnect with exponential backoff when the transport drops.
// The engine's state stays valid across reconnects — correlation is keyed,
// not sequence-position-based.
package feed
