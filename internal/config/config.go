package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" default:"development"`
	Port           string `env:"PORT" default:"8080"`
	DatabaseURL    string `env:"DATABASE_URL"`
	YouTubeVideoID string `env:"YOUTUBE_VIDEO_ID"`
	YouTubeAPIKey  string `env:"YOUTUBE_API_KEY"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`

	MaxClients int `env:"MAX_CLIENTS" default:"100"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":     cfg.DatabaseURL,
		"YOUTUBE_VIDEO_ID": cfg.YouTubeVideoID,
		"YOUTUBE_API_KEY":  cfg.YouTubeAPIKey,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxClients < 1 {
		return fmt.Errorf("MAX_CLIENTS must be a positive integer, got %d", cfg.MaxClients)
	}

	return nil
}
