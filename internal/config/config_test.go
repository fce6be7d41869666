package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("OPS_LISTEN_ADDR")
	os.Unsetenv("REGISTRY_REFRESH_TTL")
	os.Unsetenv("PIN_SERVICE_URL")
	os.Unsetenv("REDIS_ADDR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.OpsListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.RegistryRefreshTTL)
	assert.Equal(t, "https://api.pinata.cloud", cfg.PinServiceURL)
	assert.Equal(t, "", cfg.RedisAddr)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/registry")
	t.Setenv("REGISTRY_REFRESH_TTL", "30s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("PIN_SERVICE_TOKEN", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/registry", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.RegistryRefreshTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "secret", cfg.PinServiceToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_BadRefreshTTL(t *testing.T) {
	t.Setenv("REGISTRY_REFRESH_TTL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ForceApproveNeverInProduction(t *testing.T) {
	t.Setenv("COINBASE_FORCE_APPROVE", "true")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.CoinbaseForceApprove)

	t.Setenv("ENVIRONMENT", "development")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.CoinbaseForceApprove)
}

func TestValidate_Zelfd(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate("zelfd"))

	cfg.DatabaseURL = "postgres://localhost/registry"
	require.Error(t, cfg.Validate("zelfd"))

	cfg.PinServiceToken = "token"
	cfg.SealerURL = "https://sealer.example"
	require.NoError(t, cfg.Validate("zelfd"))
}
