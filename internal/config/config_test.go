package config

import (
	"testing"
	"time"

	"brainsync-client/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_URL", "http://localhost:5000/api/v1")
	t.Setenv("SESSION_STORE", "memory")

	cfg := Load()

	assert.Equal(t, "http://localhost:5000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:5000/api/v1/ws", cfg.Realtime.WSURL)
	assert.Equal(t, TransportWebSocket, cfg.Realtime.Transport)
	assert.Equal(t, 60*time.Second, cfg.Cache.KeepUnusedFor)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_REQUEST_TIMEOUT", "5s")
	t.Setenv("REALTIME_ENABLED", "false")
	t.Setenv("CACHE_KEEP_UNUSED_FOR", "0s")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
	assert.False(t, cfg.Realtime.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Cache.KeepUnusedFor)
	assert.True(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad transport", mutate: func(c *Config) { c.Realtime.Transport = "sse" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Session.Store = StoreRedis; c.Session.RedisURL = "" }, wantErr: true},
		{name: "redis with url", mutate: func(c *Config) { c.Session.Store = StoreRedis; c.Session.RedisURL = "redis://localhost:6379" }},
		{name: "backoff inverted", mutate: func(c *Config) { c.Realtime.MaxBackoff = time.Millisecond }, wantErr: true},
		{name: "invalid base url", mutate: func(c *Config) { c.API.BaseURL = "not a url" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.API.RequestTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Session.Store = StoreMemory
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultWSURL(t *testing.T) {
	assert.Equal(t, "wss://api.example.com/v1/ws", DefaultWSURL("https://api.example.com/v1"))
	assert.Equal(t, "ws://127.0.0.1:5000/api/v1/ws", DefaultWSURL("http://127.0.0.1:5000/api/v1"))
	assert.Equal(t, "localhost/ws", DefaultWSURL("localhost"))
}
