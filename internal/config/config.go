package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Env variable names consumed at process start. Credentials are read
// once by the CLI layer and handed to the auth client; they are never
// written back to disk.
const (
	EnvPhone = "TR_PHONE"
	EnvPIN   = "TR_PIN"
	EnvOTP   = "TR_OTP"
)

// Config holds all tunables. Zero values are replaced by defaults in
// Load, so a partial YAML file only overrides what it names.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Transport TransportConfig `yaml:"transport"`
	Sync      SyncConfig      `yaml:"sync"`
	Notion    NotionConfig    `yaml:"notion"`

	// StorePath is the SQLite database holding synced records and the
	// persisted cursor.
	StorePath string `yaml:"store_path"`

	// TokenPath is where session/refresh tokens are cached between
	// runs (0600).
	TokenPath string `yaml:"token_path"`
}

// APIConfig addresses the remote brokerage endpoints.
type APIConfig struct {
	RESTBaseURL string `yaml:"rest_base_url"`
	WSURL       string `yaml:"ws_url"`
	Locale      string `yaml:"locale"`
}

// TransportConfig tunes the duplex connection.
type TransportConfig struct {
	// BackoffBase and BackoffCap bound the exponential reconnect
	// backoff; jitter is applied on top.
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`

	// MaxReconnects is the consecutive failure count after which the
	// run aborts with a reconnect-exhausted error.
	MaxReconnects int `yaml:"max_reconnects"`

	// IdleTimeout is the maximum silence window per outstanding
	// subscription before the connection is treated as lost.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// EchoWindow is how long after sending a frame an identical
	// inbound frame on the same id is treated as a protocol echo.
	EchoWindow time.Duration `yaml:"echo_window"`
}

// SyncConfig tunes the timeline pagination run.
type SyncConfig struct {
	PageSize          int `yaml:"page_size"`
	DetailConcurrency int `yaml:"detail_concurrency"`
}

// NotionConfig configures the optional Notion sync target.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			RESTBaseURL: "https://api.traderepublic.com/api/v1",
			WSURL:       "wss://api.traderepublic.com/",
			Locale:      "en",
		},
		Transport: TransportConfig{
			BackoffBase:   1 * time.Second,
			BackoffCap:    30 * time.Second,
			MaxReconnects: 5,
			IdleTimeout:   30 * time.Second,
			EchoWindow:    2 * time.Second,
		},
		Sync: SyncConfig{
			PageSize:          50,
			DetailConcurrency: 4,
		},
		StorePath: defaultDataPath("transactions.db"),
		TokenPath: defaultDataPath("tokens.json"),
	}
}

// Load reads the YAML file at path and merges it over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("Load: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("Load: parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values left by a partial YAML file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.API.RESTBaseURL == "" {
		c.API.RESTBaseURL = def.API.RESTBaseURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = def.API.WSURL
	}
	if c.API.Locale == "" {
		c.API.Locale = def.API.Locale
	}
	if c.Transport.BackoffBase <= 0 {
		c.Transport.BackoffBase = def.Transport.BackoffBase
	}
	if c.Transport.BackoffCap <= 0 {
		c.Transport.BackoffCap = def.Transport.BackoffCap
	}
	if c.Transport.MaxReconnects <= 0 {
		c.Transport.MaxReconnects = def.Transport.MaxReconnects
	}
	if c.Transport.IdleTimeout <= 0 {
		c.Transport.IdleTimeout = def.Transport.IdleTimeout
	}
	if c.Transport.EchoWindow <= 0 {
		c.Transport.EchoWindow = def.Transport.EchoWindow
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = def.Sync.PageSize
	}
	if c.Sync.DetailConcurrency <= 0 {
		c.Sync.DetailConcurrency = def.Sync.DetailConcurrency
	}
	if c.StorePath == "" {
		c.StorePath = def.StorePath
	}
	if c.TokenPath == "" {
		c.TokenPath = def.TokenPath
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".trtracker", name)
}
