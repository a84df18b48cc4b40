package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROBLOX_MAX_RETRIES", "")
	t.Setenv("SNAPSHOT_TIMEZONE", "")

	cfg := Load()

	assert.Equal(t, 5, cfg.Roblox.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Roblox.PageDelay)
	assert.Equal(t, 15*time.Second, cfg.Roblox.RequestTimeout)
	assert.Equal(t, "UTC", cfg.Scan.Timezone)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ROBLOX_MAX_RETRIES", "3")
	t.Setenv("ROBLOX_PAGE_DELAY", "1s")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("HTTP_ADDR", "9090")

	cfg := Load()

	assert.Equal(t, 3, cfg.Roblox.MaxRetries)
	assert.Equal(t, time.Second, cfg.Roblox.PageDelay)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ROBLOX_MAX_RETRIES", "many")
	t.Setenv("ROBLOX_PAGE_DELAY", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.Roblox.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Roblox.PageDelay)
}

func TestScanConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, ScanConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "America/New_York", ScanConfig{Timezone: "America/New_York"}.Location().String())
}

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{":8080", ":8080"},
		{"8080", ":8080"},
		{"localhost:8080", "localhost:8080"},
		{"[::1]:8080", "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.in))
		})
	}
}
