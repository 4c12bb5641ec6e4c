package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fangwater/feedrace/internal/config"
	"github.com/fangwater/feedrace/internal/engine"
)

// feedServer is a scripted websocket endpoint: it records the subscribe
// request and pushes the given frames to every connecting client.
func feedServer(t *testing.T, frames [][]byte, subscribes chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case subscribes <- sub:
		default:
		}

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		// Hold the connection open so the client isn't sent into its
		// reconnect loop mid-test.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForArrivals(t *testing.T, eng *engine.Engine, want uint64) engine.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := eng.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.A.Arrivals >= want {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d arrivals", want)
	return engine.Snapshot{}
}

func TestClient_SubscribesAndIngests(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"result":null,"id":1}`),        // ack — dropped silently
		[]byte(`{"e":"depthUpdate","u":101}`),   // data
		[]byte(`{"e":"depthUpdate","u":102}`),   // data
		[]byte(`not json at all`),               // decode failure
		[]byte(`{"e":"depthUpdate","p":"1.0"}`), // missing key field
	}
	subscribes := make(chan []byte, 1)
	srv := feedServer(t, frames, subscribes)
	defer srv.Close()

	eng := engine.New(engine.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	cfg := config.FeedConfig{
		Name:     "primary",
		URL:      wsURL(srv),
		Format:   "raw",
		KeyField: "u",
		Subscribe: map[string]any{
			"method": "SUBSCRIBE",
			"params": []any{"btcusdt@depth@100ms"},
			"id":     1,
		},
	}
	client := New(cfg, engine.SourceA, eng)
	go client.Run(ctx)

	select {
	case sub := <-subscribes:
		if !strings.Contains(string(sub), "SUBSCRIBE") {
			t.Errorf("subscribe request: got %s", sub)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscribe request")
	}

	snap := waitForArrivals(t, eng, 2)
	if snap.A.Arrivals != 2 {
		t.Errorf("arrivals: got %d, want 2 — ack and bad frames must not count", snap.A.Arrivals)
	}

	// Both bad frames are surfaced as decode failures, never fatal.
	deadline := time.Now().Add(5 * time.Second)
	for client.Stats().DecodeFailures < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	stats := client.Stats()
	if stats.DecodeFailures != 2 {
		t.Errorf("DecodeFailures: got %d, want 2", stats.DecodeFailures)
	}
	if !stats.Connected {
		t.Error("Connected: got false, want true while the socket is open")
	}
	if stats.Name != "primary" {
		t.Errorf("Name: got %q", stats.Name)
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	conns := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- struct{}{}
		// Push one frame, then drop the connection.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"u":1}`)) //nolint:errcheck
		conn.Close()
	}))
	defer srv.Close()

	eng := engine.New(engine.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	client := New(config.FeedConfig{Name: "flaky", URL: wsURL(srv), Format: "raw", KeyField: "u"}, engine.SourceB, eng)
	go client.Run(ctx)

	// The client must come back after the server drops it.
	for i := 0; i < 2; i++ {
		select {
		case <-conns:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for connection %d", i+1)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.Stats().Reconnects < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := client.Stats().Reconnects; got < 1 {
		t.Errorf("Reconnects: got %d, want ≥ 1", got)
	}
}
