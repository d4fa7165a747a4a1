package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all process configuration, loaded from the environment.
type Config struct {
	Port      string `env:"LINKHUB_PORT" envDefault:"8080"`
	DBPath    string `env:"LINKHUB_DB_PATH" envDefault:"linkhub.db"`
	UploadDir string `env:"LINKHUB_UPLOAD_DIR" envDefault:"uploads"`
	Env       string `env:"LINKHUB_ENV" envDefault:"development"`
	LogLevel  string `env:"LINKHUB_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment, consulting a .env file
// first when one exists in the working directory.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Production reports whether the process runs with production hardening
// (secure cookies).
func (c *Config) Production() bool {
	return c.Env == "production"
}
