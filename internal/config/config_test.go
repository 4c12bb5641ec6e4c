package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
feeds:
  a:
    name: primary
    url: wss://stream.example.com/ws
    key_field: u
    subscribe:
      method: SUBSCRIBE
      params: ["btcusdt@depth@100ms"]
      id: 1
  b:
    name: mirror
    url: wss://mirror.example.com/stream
    format: combined
    key_field: u
    subscribe:
      method: SUBSCRIBE
      params: ["btcusdt@depth@100ms"]
      id: 1
report:
  interval: 3s
engine:
  pending_ttl: 5m
storage:
  backend: sqlite
  path: /tmp/feedrace.db
  retention: 12h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Feeds.A.Name != "primary" || cfg.Feeds.B.Name != "mirror" {
		t.Errorf("feed names: got %q/%q", cfg.Feeds.A.Name, cfg.Feeds.B.Name)
	}
	if cfg.Feeds.A.Format != "raw" {
		t.Errorf("feeds.a format default: got %q, want raw", cfg.Feeds.A.Format)
	}
	if cfg.Feeds.B.Format != "combined" {
		t.Errorf("feeds.b format: got %q, want combined", cfg.Feeds.B.Format)
	}
	if cfg.Report.Interval != 3*time.Second {
		t.Errorf("report.interval: got %v, want 3s", cfg.Report.Interval)
	}
	if cfg.Engine.PendingTTL != 5*time.Minute {
		t.Errorf("engine.pending_ttl: got %v, want 5m", cfg.Engine.PendingTTL)
	}
	if cfg.Storage.Retention != 12*time.Hour {
		t.Errorf("storage.retention: got %v, want 12h", cfg.Storage.Retention)
	}
	if cfg.Feeds.A.Subscribe["method"] != "SUBSCRIBE" {
		t.Errorf("subscribe.method: got %v", cfg.Feeds.A.Subscribe["method"])
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `
feeds:
  a: {name: primary, url: wss://a.example.com/ws}
  b: {name: mirror, url: wss://b.example.com/ws}
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Report.Interval != DefaultReportInterval {
		t.Errorf("report.interval default: got %v, want %v", cfg.Report.Interval, DefaultReportInterval)
	}
	if cfg.Hub.Interval != DefaultHubInterval {
		t.Errorf("hub.interval default: got %v, want %v", cfg.Hub.Interval, DefaultHubInterval)
	}
	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("http.port default: got %d, want %d", cfg.HTTP.Port, DefaultHTTPPort)
	}
	if cfg.Engine.PendingTTL != 0 {
		t.Errorf("engine.pending_ttl default: got %v, want 0 (disabled)", cfg.Engine.PendingTTL)
	}
	if cfg.Feeds.A.KeyField != "u" {
		t.Errorf("key_field default: got %q, want u", cfg.Feeds.A.KeyField)
	}
	if cfg.Storage.Backend != "" {
		t.Errorf("storage.backend default: got %q, want disabled", cfg.Storage.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on missing file: want error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "feeds: [not a mapping")); err == nil {
		t.Fatal("Load on broken yaml: want error")
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"missing feed name",
			`feeds: {a: {url: wss://a.example.com}, b: {name: b, url: wss://b.example.com}}`,
			"name is required",
		},
		{
			"missing url",
			`feeds: {a: {name: a}, b: {name: b, url: wss://b.example.com}}`,
			"url is required",
		},
		{
			"bad scheme",
			`feeds: {a: {name: a, url: https://a.example.com}, b: {name: b, url: wss://b.example.com}}`,
			"must be ws:// or wss://",
		},
		{
			"bad format",
			`feeds: {a: {name: a, url: wss://a.example.com, format: xml}, b: {name: b, url: wss://b.example.com}}`,
			"unknown format",
		},
		{
			"duplicate names",
			`feeds: {a: {name: same, url: wss://a.example.com}, b: {name: same, url: wss://b.example.com}}`,
			"distinct names",
		},
		{
			"negative ttl",
			`
feeds: {a: {name: a, url: wss://a.example.com}, b: {name: b, url: wss://b.example.com}}
engine: {pending_ttl: -1s}`,
			"pending_ttl",
		},
		{
			"bad auth mode",
			`
feeds: {a: {name: a, url: wss://a.example.com}, b: {name: b, url: wss://b.example.com}}
http: {auth: {mode: oauth}}`,
			"unknown mode",
		},
		{
			"sqlite without path",
			`
feeds: {a: {name: a, url: wss://a.example.com}, b: {name: b, url: wss://b.example.com}}
storage: {backend: sqlite}`,
			"path is required",
		},
		{
			"unknown backend",
			`
feeds: {a: {name: a, url: wss://a.example.com}, b: {name: b, url: wss://b.example.com}}
storage: {backend: postgres, path: x.db}`,
			"unknown backend",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Load: want validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("FEEDRACE_TEST_KEY", "secret")

	a := AuthConfig{Mode: "apikey", KeyEnv: "FEEDRACE_TEST_KEY"}
	if got := a.Key(); got != "secret" {
		t.Errorf("Key: got %q, want secret", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key with no env: got %q, want empty", got)
	}
}
