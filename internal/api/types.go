package api

import (
	"github.com/fangwater/feedrace/internal/engine"
	"github.com/fangwater/feedrace/internal/feed"
)

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Snapshot engine.Snapshot `json:"snapshot"`
	Feeds    []feed.Stats    `json:"feeds"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" when both feeds are connected, "degraded" otherwise.
	State     string       `json:"state"`
	Feeds     []feed.Stats `json:"feeds"`
	UptimeSec float64      `json:"uptime_sec"`
}

type errorResponse struct {
	Error string `json:"error"`
}
