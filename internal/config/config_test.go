package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 30*time.Second, cfg.RailTimeout)
	assert.Equal(t, 5*time.Minute, cfg.StaleTransferAfter)
	assert.Equal(t, 5, cfg.WalletMaxRetries)
	assert.True(t, cfg.IsDev())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/moneyflow")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RAIL_TIMEOUT", "45")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, ":9000", cfg.Address())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 45*time.Second, cfg.RailTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
}

func TestLoadRequiresStoresOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"RAIL_TIMEOUT":       "soon",
		"SWEEP_INTERVAL":     "-1m",
		"WALLET_MAX_RETRIES": "0",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv(key, value)

			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
