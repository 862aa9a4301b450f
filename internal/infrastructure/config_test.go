package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	config := new(AppConfig)
	config.AppID = "gateway"
	config.Env = EnvProduction
	config.Backend.BaseURL = "http://localhost:5000"
	config.Logging.Level = "info"
	config.Security.IDLength = 21
	config.Security.JWTMethod = "HS256"
	config.Security.JWTSecret = "secret"
	config.Progress.Interval = time.Second
	config.Progress.Threshold = 90
	config.Progress.Debounce = 2
	return config
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		msg    string
	}{
		{"asymmetric jwt method", func(c *AppConfig) { c.Security.JWTMethod = "ES256" }, "security.jwt_method must be one of"},
		{"zero debounce", func(c *AppConfig) { c.Progress.Debounce = 0 }, "progress.debounce must be min 1"},
		{"threshold above 100", func(c *AppConfig) { c.Progress.Threshold = 101 }, "progress.threshold must be max 100"},
		{"missing secret", func(c *AppConfig) { c.Security.JWTSecret = "" }, "security.jwt_secret is required"},
		{"kv without channel", func(c *AppConfig) { c.KVStore.Enabled = true }, "kv.channel is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
