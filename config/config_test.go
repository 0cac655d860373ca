package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5250", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10000.0, cfg.Estate.LowPriceThreshold)
	assert.Equal(t, 90, cfg.Estate.AvailabilityDelayDays)
	assert.Equal(t, 100, cfg.Import.MaxBatchSize)
	assert.Equal(t, 3, cfg.Import.MaxRetries)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("ESTATE_LOW_PRICE_THRESHOLD", "2500.5")
	t.Setenv("IMPORT_WORKERS", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 2500.5, cfg.Estate.LowPriceThreshold)
	assert.Equal(t, 4, cfg.Import.Workers)
}
