package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)
	assert.Equal(t, SDKVersion, cfg.API.SDKVersion)
	assert.Equal(t, 30*time.Second, cfg.Ads.FetchTimeout)
	assert.Equal(t, []string{"interstitial", "rewarded"}, cfg.Ads.GatedSlots)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.FlushInterval)
	assert.Equal(t, 10, cfg.Telemetry.BatchSize)
	assert.Equal(t, 1000, cfg.Telemetry.MaxQueue)
	assert.Equal(t, "memory", cfg.Identity.Store)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("KASRAH_SDK_API_URL", "http://localhost:4000")
	t.Setenv("KASRAH_SDK_GAME_ID", "g1")
	t.Setenv("KASRAH_SDK_AD_MIN_INTERVAL", "45s")
	t.Setenv("KASRAH_SDK_AD_GATED_SLOTS", "interstitial, rewarded ,banner")
	t.Setenv("KASRAH_SDK_TELEMETRY_BATCH_SIZE", "25")
	t.Setenv("KASRAH_SDK_METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4000", cfg.API.BaseURL)
	assert.Equal(t, "g1", cfg.Game.GameID)
	assert.Equal(t, 45*time.Second, cfg.Ads.MinInterval)
	assert.Equal(t, []string{"interstitial", "rewarded", "banner"}, cfg.Ads.GatedSlots)
	assert.Equal(t, 25, cfg.Telemetry.BatchSize)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("KASRAH_SDK_TELEMETRY_MAX_QUEUE", "lots")
	t.Setenv("KASRAH_SDK_AD_FETCH_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Telemetry.MaxQueue)
	assert.Equal(t, 30*time.Second, cfg.Ads.FetchTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "relative api url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.Ads.MinInterval = -time.Second }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Telemetry.BatchSize = 0 }, wantErr: true},
		{name: "unknown store", mutate: func(c *Config) { c.Identity.Store = "cookie" }, wantErr: true},
		{name: "redis store", mutate: func(c *Config) { c.Identity.Store = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.DSN())
}
