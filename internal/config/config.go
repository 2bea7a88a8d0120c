package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string        `env:"PORT" envDefault:"3001"`
	PostgresDSN string        `env:"POSTGRES_DSN,required,notEmpty"`
	MongoURI    string        `env:"MONGO_URI,required,notEmpty"`
	MongoDB     string        `env:"MONGO_DB" envDefault:"bookshelf"`
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	return &cfg, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
