package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultReportInterval = 10 * time.Second
	DefaultHubInterval    = 5 * time.Second
	DefaultHTTPPort       = 8080
	DefaultRetention      = 24 * time.Hour
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Feeds   FeedsConfig   `yaml:"feeds"`
	Engine  EngineConfig  `yaml:"engine"`
	Report  ReportConfig  `yaml:"report"`
	HTTP    HTTPConfig    `yaml:"http"`
	Hub     HubConfig     `yaml:"hub"`
	Storage StorageConfig `yaml:"storage"`
}

// FeedsConfig names the two delivery channels under comparison.
type FeedsConfig struct {
	A FeedConfig `yaml:"a"`
	B FeedConfig `yaml:"b"`
}

// FeedConfig describes one push-stream connection.
type FeedConfig struct {
	// Name is the human-readable label used in logs and reports.
	Name string `yaml:"name"`

	// URL is the websocket endpoint (ws:// or wss://).
	URL string `yaml:"url"`

	// Format selects the payload shape: "raw" for a flat data object,
	// "combined" for a {"stream": ..., "data": {...}} envelope.
	Format string `yaml:"format"`

	// KeyField is the JSON field carrying the update identifier. The field
	// name differs per feed; its semantics (monotonically increasing update
	// sequence) must be identical, or cross-feed correlation is meaningless.
	KeyField string `yaml:"key_field"`

	// Subscribe is the subscription request sent once after connecting,
	// serialized to JSON verbatim.
	Subscribe map[string]any `yaml:"subscribe"`
}

// EngineConfig holds correlation-engine tunables.
type EngineConfig struct {
	// PendingTTL evicts pending (half-matched) keys older than this age.
	// Zero keeps them forever, matching the original behavior.
	PendingTTL time.Duration `yaml:"pending_ttl"`
}

// ReportConfig controls the periodic statistics log line.
type ReportConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HTTPConfig holds the snapshot API listener settings. Port 0 disables the
// HTTP surface entirely.
type HTTPConfig struct {
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures API authentication for the HTTP surface.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected
	// API key. The key itself never appears in the config file.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// HubConfig controls the websocket snapshot broadcast.
type HubConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig configures the completed-pair persistence backend.
type StorageConfig struct {
	// Backend selects the storage implementation: sqlite. Empty disables
	// persistence.
	Backend string `yaml:"backend"`

	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long completed records are kept before pruning.
	Retention time.Duration `yaml:"retention"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyFeedDefaults(&cfg.Feeds.A)
	applyFeedDefaults(&cfg.Feeds.B)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Report: ReportConfig{Interval: DefaultReportInterval},
		Hub:    HubConfig{Interval: DefaultHubInterval},
		HTTP:   HTTPConfig{Port: DefaultHTTPPort},
		Storage: StorageConfig{
			Retention: DefaultRetention,
		},
	}
}

func applyFeedDefaults(f *FeedConfig) {
	if f.Format == "" {
		f.Format = "raw"
	}
	if f.KeyField == "" {
		f.KeyField = "u"
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	for _, fc := range []struct {
		label string
		feed  FeedConfig
	}{{"feeds.a", cfg.Feeds.A}, {"feeds.b", cfg.Feeds.B}} {
		if fc.feed.Name == "" {
			return fmt.Errorf("%s: name is required", fc.label)
		}
		if fc.feed.URL == "" {
			return fmt.Errorf("%s %q: url is required", fc.label, fc.feed.Name)
		}
		if !strings.HasPrefix(fc.feed.URL, "ws://") && !strings.HasPrefix(fc.feed.URL, "wss://") {
			return fmt.Errorf("%s %q: url must be ws:// or wss://", fc.label, fc.feed.Name)
		}
		switch fc.feed.Format {
		case "raw", "combined":
		default:
			return fmt.Errorf("%s %q: unknown format %q", fc.label, fc.feed.Name, fc.feed.Format)
		}
	}
	if cfg.Feeds.A.Name == cfg.Feeds.B.Name {
		return fmt.Errorf("feeds: a and b must have distinct names (both %q)", cfg.Feeds.A.Name)
	}
	if cfg.Engine.PendingTTL < 0 {
		return fmt.Errorf("engine.pending_ttl must not be negative")
	}
	if cfg.Report.Interval <= 0 {
		return fmt.Errorf("report.interval must be positive")
	}
	if cfg.Hub.Interval <= 0 {
		return fmt.Errorf("hub.interval must be positive")
	}
	switch cfg.HTTP.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("http.auth: unknown mode %q", cfg.HTTP.Auth.Mode)
	}
	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage: path is required for sqlite backend")
		}
		if cfg.Storage.Retention <= 0 {
			return fmt.Errorf("storage.retention must be positive")
		}
	case "":
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	return nil
}
