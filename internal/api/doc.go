// Package api implements the HTTP surface for feedrace.
//
// New(engine, feedA, feedB, auth) returns an http.Handler that serves:
//
//	GET /api/v1/snapshot — full engine statistics + feed counters
//	GET /api/v1/health   — feed connection states and process uptime
//	GET /metrics         — engine counters in Prometheus text exposition format
//
// All JSON endpoints respond with Content-Type: application/json and return
// 405 for non-GET methods. When API-key auth is configured, every route
// requires a matching X-API-Key header.
package api
