package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(settings map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for key, value := range settings {
		v.Set(key, value)
	}
	return v
}

func validSettings() map[string]any {
	return map[string]any{
		"service":  "shopify",
		"requests": 2,
		"period":   10.0,
		"port":     7000,
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(newViper(validSettings()))
	require.NoError(t, err)

	assert.Equal(t, "shopify", cfg.Service)
	assert.Equal(t, 2, cfg.Requests)
	assert.Equal(t, 10.0, cfg.Period)
	assert.Equal(t, DefaultIP, cfg.IP)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultAdminHost, cfg.Admin.Host)
	assert.False(t, cfg.AdminEnabled())
	assert.False(t, cfg.MetricsEnabled())
	assert.Equal(t, "0.0.0.0:7000", cfg.Address())

	period, err := cfg.PeriodDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, period)
}

func TestLoadDecodesStringValues(t *testing.T) {
	settings := map[string]any{
		"service":       "  github  ",
		"requests":      "100",
		"period":        "0.5",
		"ip":            "127.0.0.1",
		"port":          "7001",
		"logging.level": "DEBUG",
		"admin.port":    "8080",
		"metrics.port":  "9090",
	}

	cfg, err := Load(newViper(settings))
	require.NoError(t, err)

	assert.Equal(t, "github", cfg.Service)
	assert.Equal(t, 100, cfg.Requests)
	assert.Equal(t, 0.5, cfg.Period)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.AdminAddress())
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.AdminEnabled())
	assert.True(t, cfg.MetricsEnabled())

	period, err := cfg.PeriodDuration()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, period)
}

func TestLoadIPv6Address(t *testing.T) {
	settings := validSettings()
	settings["ip"] = "::1"

	cfg, err := Load(newViper(settings))
	require.NoError(t, err)
	assert.Equal(t, "[::1]:7000", cfg.Address())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		message string
	}{
		{"missing service", "service", "", "service name is required"},
		{"zero requests", "requests", 0, "requests must be a positive integer"},
		{"negative requests", "requests", -5, "requests must be a positive integer"},
		{"zero period", "period", 0.0, "invalid period"},
		{"negative period", "period", -1.5, "invalid period"},
		{"period too long", "period", 9e9, "period exceeds maximum"},
		{"missing port", "port", 0, "port must be between 1 and 65535"},
		{"port too large", "port", 70000, "port must be between 1 and 65535"},
		{"bad ip", "ip", "not an ip!", "invalid ip"},
		{"bad log level", "logging.level", "loud", "invalid log level"},
		{"negative admin port", "admin.port", -1, "admin port must be between 0 and 65535"},
		{"admin collides", "admin.port", 7000, "collides with the delay port"},
		{"metrics collides", "metrics.port", 7000, "collides with the delay port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(validSettings())
			v.Set(tt.key, tt.value)

			cfg, err := Load(v)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{IP: DefaultIP}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service name is required")
	assert.Contains(t, err.Error(), "requests must be a positive integer")
	assert.Contains(t, err.Error(), "invalid period")
	assert.Contains(t, err.Error(), "port must be between 1 and 65535")
}

func TestLoadRequiresSource(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
}

func TestConfigString(t *testing.T) {
	cfg, err := Load(newViper(validSettings()))
	require.NoError(t, err)
	assert.Equal(t, "shopify: 2 requests per 10s on 0.0.0.0:7000", cfg.String())
}
