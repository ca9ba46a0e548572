package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseConfig builds a config passing all required-field checks.
func baseConfig() *Config {
	cfg := &Config{}
	cfg.Server.Listen = ":8080"
	cfg.Server.Timeout = 30 * time.Second
	cfg.YouTube = YouTubeConfig{APIKey: "test-key", Timeout: 15 * time.Second, RPS: 10}
	cfg.Playlists = PlaylistsConfig{
		Regular:     []string{"PL-one"},
		Lookback:    30 * 24 * time.Hour,
		MaxFetchers: 8,
	}
	cfg.Cache = CacheConfig{Window: time.Hour, IconWindow: 24 * time.Hour}
	cfg.Store = StoreConfig{DSN: "file:test.db", Window: 12 * time.Hour}
	cfg.Schedule = ScheduleConfig{Interval: time.Hour}
	return cfg
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "missing server listen",
			mutate:  func(cfg *Config) { cfg.Server.Listen = "" },
			wantErr: true,
			errMsg:  "server.listen is required",
		},
		{
			name: "store enabled without dsn",
			mutate: func(cfg *Config) {
				cfg.Store.Enabled = true
				cfg.Store.DSN = ""
			},
			wantErr: true,
			errMsg:  "store.dsn is required when store is enabled",
		},
		{
			name: "store enabled with tiny window",
			mutate: func(cfg *Config) {
				cfg.Store.Enabled = true
				cfg.Store.Window = time.Second
			},
			wantErr: true,
			errMsg:  "store.window must be at least 1 minute",
		},
		{
			name: "schedule enabled without interval",
			mutate: func(cfg *Config) {
				cfg.Schedule.Enabled = true
				cfg.Schedule.Interval = 0
			},
			wantErr: true,
			errMsg:  "schedule.interval is required when schedule is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			err := VerifyAgainstEmbeddedSchema(cfg)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	// verify schema can be marshaled to JSON
	data, err := schema.MarshalJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// verify it contains expected fields
	schemaStr := string(data)
	assert.Contains(t, schemaStr, "Config")
	assert.Contains(t, schemaStr, "server")
	assert.Contains(t, schemaStr, "playlists")
}
