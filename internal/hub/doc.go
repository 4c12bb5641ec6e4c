// Package hub implements the WebSocket broadcast surface for feedrace.
//
// Hub manages a set of connected downstream clients and pushes the current
// engine snapshot to all of them on a configurable interval, plus once
// immediately on connect.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { "snapshot": { /* engine stats */ }, "feeds": [ … ] }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by main.
package hub
