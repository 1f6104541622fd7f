package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port              string `envconfig:"PORT" default:"8080"`
	DatabaseURL       string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL          string `envconfig:"REDIS_URL"`
	StorageBucket     string `envconfig:"STORAGE_BUCKET"`
	GoogleCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
