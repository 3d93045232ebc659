package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LISTEN_ADDR", "DB_PATH", "ROUTER_TIMEOUT", "SNAP_RADIUS_M", "REFRESH_ROUTES_INTERVAL", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":10101", cfg.ListenAddr)
	assert.Equal(t, "./data/traffic.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.RouterTimeout)
	assert.Equal(t, 10*time.Second, cfg.SocketTimeout)
	assert.Equal(t, 80.0, cfg.SnapRadius)
	assert.Equal(t, 86399*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 2*time.Minute, cfg.Intervals.RefreshRoutes)
	assert.Equal(t, 30*time.Minute, cfg.Intervals.CleanUp)
	assert.Equal(t, 24*time.Hour, cfg.Intervals.UpdateSpeed)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("ROUTER_TIMEOUT", "45s")
	t.Setenv("SNAP_RADIUS_M", "60")
	t.Setenv("RECURRING_PROBLEMS_INTERVAL", "6h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 45*time.Second, cfg.RouterTimeout)
	assert.Equal(t, 60.0, cfg.SnapRadius)
	assert.Equal(t, 6*time.Hour, cfg.Intervals.RecurringProblems)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ROUTER_TIMEOUT", "soon"},
		{"RATE_LIMIT", "many"},
		{"SNAP_RADIUS_M", "far"},
		{"CLEANUP_INTERVAL", "0s"},
		{"CONGESTION_SNAP_RADIUS_M", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_TRAFFIC_VAR", "")
	assert.Equal(t, "default", getEnv("TEST_TRAFFIC_VAR", "default"))

	t.Setenv("TEST_TRAFFIC_VAR", "custom")
	assert.Equal(t, "custom", getEnv("TEST_TRAFFIC_VAR", "default"))
}
