package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Env)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 3, cfg.Bandwidth.NumProxies)
	assert.False(t, cfg.REST.LegacyParseErrorStatus)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("POLICYCTL_ENV", "production")
	t.Setenv("POLICYCTL_NUM_PROXIES", "5")
	t.Setenv("POLICYCTL_LEGACY_PARSE_ERROR_STATUS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Production, cfg.Env)
	assert.Equal(t, 5, cfg.Bandwidth.NumProxies)
	assert.True(t, cfg.REST.LegacyParseErrorStatus)
}

func TestLoadRejectsNonPositiveProxies(t *testing.T) {
	t.Setenv("POLICYCTL_NUM_PROXIES", "0")

	_, err := Load("")
	assert.Error(t, err)
}
