package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	YouTube YouTubeConfig `yaml:"youtube" json:"youtube" jsonschema:"description=Upstream catalog API configuration"`

	Playlists PlaylistsConfig `yaml:"playlists" json:"playlists" jsonschema:"description=Playlist source configuration"`

	Cache CacheConfig `yaml:"cache" json:"cache" jsonschema:"description=Result and icon cache configuration"`

	Store StoreConfig `yaml:"store" json:"store" jsonschema:"description=Externalized result cache configuration"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Background refresh configuration"`
}

// YouTubeConfig holds upstream catalog API settings
type YouTubeConfig struct {
	APIKey  string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"description=API base URL override for testing"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Per-request timeout"`
	RPS     float64       `yaml:"rps" json:"rps" jsonschema:"default=10,description=Client-side request pacing in requests per second"`
}

// PlaylistsConfig holds the source playlist set
type PlaylistsConfig struct {
	Regular     []string      `yaml:"regular" json:"regular" jsonschema:"description=Regular playlist ids fetched with the lookback window"`
	Exception   string        `yaml:"exception" json:"exception" jsonschema:"description=Playlist merged into the general set with full history"`
	Recommended string        `yaml:"recommended" json:"recommended" jsonschema:"description=Playlist forming the recommended set"`
	Lookback    time.Duration `yaml:"lookback" json:"lookback" jsonschema:"default=720h,description=Publish window for regular playlists"`
	MaxFetchers int           `yaml:"max_fetchers" json:"max_fetchers" jsonschema:"default=8,description=Maximum concurrent playlist fetches"`
}

// CacheConfig holds freshness windows for the two caches
type CacheConfig struct {
	Window     time.Duration `yaml:"window" json:"window" jsonschema:"default=1h,description=Result cache freshness window"`
	IconWindow time.Duration `yaml:"icon_window" json:"icon_window" jsonschema:"default=24h,description=Channel icon cache freshness window"`
}

// StoreConfig holds the optional SQLite-backed result persistence
type StoreConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Persist results across restarts"`
	DSN     string        `yaml:"dsn" json:"dsn" jsonschema:"default=file:clipfeed.db?cache=shared&mode=rwc,description=Database connection string"`
	Window  time.Duration `yaml:"window" json:"window" jsonschema:"default=12h,description=Persisted result expiry"`
}

// ScheduleConfig holds the optional background warm refresh
type ScheduleConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Refresh the cache in the background"`
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=1h,description=Background refresh interval"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for upstream client
	if cfg.YouTube.Timeout == 0 {
		cfg.YouTube.Timeout = 15 * time.Second
	}
	if cfg.YouTube.RPS == 0 {
		cfg.YouTube.RPS = 10
	}

	// set defaults for playlists
	if cfg.Playlists.Lookback == 0 {
		cfg.Playlists.Lookback = 30 * 24 * time.Hour
	}
	if cfg.Playlists.MaxFetchers == 0 {
		cfg.Playlists.MaxFetchers = 8
	}

	// set defaults for caches
	if cfg.Cache.Window == 0 {
		cfg.Cache.Window = time.Hour
	}
	if cfg.Cache.IconWindow == 0 {
		cfg.Cache.IconWindow = 24 * time.Hour
	}

	// set defaults for store
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "file:clipfeed.db?cache=shared&mode=rwc"
	}
	if cfg.Store.Window == 0 {
		cfg.Store.Window = 12 * time.Hour
	}

	// set defaults for schedule
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = time.Hour
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// a missing api key is not a startup error, it surfaces per request as
	// an aggregation failure

	if len(cfg.Playlists.Regular) == 0 && cfg.Playlists.Exception == "" && cfg.Playlists.Recommended == "" {
		return fmt.Errorf("at least one playlist must be configured")
	}
	if cfg.Playlists.Lookback < time.Hour {
		return fmt.Errorf("playlists.lookback must be at least 1 hour")
	}
	if cfg.Playlists.MaxFetchers < 1 {
		return fmt.Errorf("playlists.max_fetchers must be at least 1")
	}

	if cfg.Cache.Window < time.Minute {
		return fmt.Errorf("cache.window must be at least 1 minute")
	}
	if cfg.Cache.IconWindow < time.Minute {
		return fmt.Errorf("cache.icon_window must be at least 1 minute")
	}

	if cfg.YouTube.RPS <= 0 {
		return fmt.Errorf("youtube.rps must be positive")
	}

	if cfg.Store.Enabled && cfg.Store.Window < time.Minute {
		return fmt.Errorf("store.window must be at least 1 minute when store is enabled")
	}

	if cfg.Schedule.Enabled && cfg.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1 minute when schedule is enabled")
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetYouTubeConfig returns upstream client configuration
func (c *Config) GetYouTubeConfig() YouTubeConfig {
	return c.YouTube
}

// GetPlaylistsConfig returns playlist source configuration
func (c *Config) GetPlaylistsConfig() PlaylistsConfig {
	return c.Playlists
}

// GetCacheConfig returns cache configuration
func (c *Config) GetCacheConfig() CacheConfig {
	return c.Cache
}
