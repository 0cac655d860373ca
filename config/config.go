package config

import (
	"errors"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string   `env:"HTTP_PORT" envDefault:"5250"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	Database struct {
		// Driver is either "sqlite" or "postgres"
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DB_DSN" envDefault:"database/estate.db"`
	}

	// JWTSecret signs the tokens identifying the acting user. Empty disables auth.
	JWTSecret string `env:"JWT_SECRET"`

	Estate struct {
		// Expected prices below this value produce a warning on save
		LowPriceThreshold float64 `env:"ESTATE_LOW_PRICE_THRESHOLD" envDefault:"10000"`

		// Days added to the creation date for a new property's availability
		AvailabilityDelayDays int `env:"ESTATE_AVAILABILITY_DELAY_DAYS" envDefault:"90"`
	}

	// Import configures the bulk property import pipeline
	Import struct {
		// Maximum number of properties in one import batch
		MaxBatchSize int `env:"IMPORT_MAX_BATCH_SIZE" envDefault:"100"`

		// Number of batches the queue buffers before rejecting new ones
		QueueSize int `env:"IMPORT_QUEUE_SIZE" envDefault:"16"`

		// Number of concurrent batch workers
		Workers int `env:"IMPORT_WORKERS" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"IMPORT_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"IMPORT_RETRY_DELAY" envDefault:"5"`
	}
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
