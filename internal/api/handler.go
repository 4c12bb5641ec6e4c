package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fangwater/feedrace/internal/config"
	"github.com/fangwater/feedrace/internal/engine"
	"github.com/fangwater/feedrace/internal/feed"
)

// apiKeyHeader carries the client credential when apikey auth is enabled.
const apiKeyHeader = "X-API-Key"

// Handler is the HTTP handler for the snapshot API and /metrics.
type Handler struct {
	eng     *engine.Engine
	feedA   *feed.Client
	feedB   *feed.Client
	auth    config.AuthConfig
	started time.Time
	mux     *http.ServeMux
}

// New creates a Handler wired to the engine and both feed clients and
// registers all routes.
func New(eng *engine.Engine, feedA, feedB *feed.Client, auth config.AuthConfig) http.Handler {
	h := &Handler{
		eng:     eng,
		feedA:   feedA,
		feedB:   feedB,
		auth:    auth,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		jsonErr(w, http.StatusUnauthorized, "invalid or missing api key")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// authorized checks the API key header when apikey mode is configured.
// Any other mode (none, empty) passes everything through.
func (h *Handler) authorized(r *http.Request) bool {
	if h.auth.Mode != "apikey" {
		return true
	}
	key := h.auth.Key()
	return key != "" && r.Header.Get(apiKeyHeader) == key
}

// --- route handlers ---------------------------------------------------------

// snapshot returns GET /api/v1/snapshot — the full statistics view.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := h.eng.Snapshot(r.Context())
	if err != nil {
		jsonErr(w, http.StatusServiceUnavailable, "engine unavailable")
		return
	}

	jsonResp(w, http.StatusOK, SnapshotResponse{
		Snapshot: snap,
		Feeds:    []feed.Stats{h.feedA.Stats(), h.feedB.Stats()},
	})
}

// health returns GET /api/v1/health — feed connectivity and uptime.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sa, sb := h.feedA.Stats(), h.feedB.Stats()
	state := "ok"
	if !sa.Connected || !sb.Connected {
		state = "degraded"
	}

	jsonResp(w, http.StatusOK, HealthResponse{
		State:     state,
		Feeds:     []feed.Stats{sa, sb},
		UptimeSec: time.Since(h.started).Seconds(),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
