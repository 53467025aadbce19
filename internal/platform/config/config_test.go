package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PX_APP_ID", "app-123")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PX_EXT_ID", "user-1")
	t.Setenv("PX_TRANSPORT_TOKEN", "token-abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "app-123", cfg.AppID)
	assert.Equal(t, "user-1", cfg.ExtID)
	assert.Equal(t, "token-abc", cfg.TransportToken)
}

func TestLoad_MissingAppID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PX_APP_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "PX_APP_ID is required", err.Error())
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, "fcm", cfg.TransportType)
	assert.Equal(t, 32, cfg.MaxTags)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.InDelta(t, 20.0, cfg.EventRate, 0.001)
	assert.Equal(t, 50, cfg.EventBurst)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "px:session", cfg.RedisKey)
	assert.Equal(t, "px:lifecycle", cfg.LifecycleChannel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PX_TRANSPORT_TYPE", "fcm.data")
	t.Setenv("PX_HTTP_TIMEOUT", "5s")
	t.Setenv("PX_MAX_TAGS", "8")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fcm.data", cfg.TransportType)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8, cfg.MaxTags)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown transport", "PX_TRANSPORT_TYPE", "sms", "PX_TRANSPORT_TYPE must be one of"},
		{"relative base url", "PX_API_BASE_URL", "/api/r/v2", "PX_API_BASE_URL must be an absolute URL"},
		{"zero max tags", "PX_MAX_TAGS", "0", "PX_MAX_TAGS must be at least 1"},
		{"negative timeout", "PX_HTTP_TIMEOUT", "-1s", "PX_HTTP_TIMEOUT must be positive"},
		{"zero event burst", "PX_EVENT_BURST", "0", "PX_EVENT_RATE and PX_EVENT_BURST must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
