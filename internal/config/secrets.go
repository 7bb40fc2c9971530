package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Secrets are the credentials for the two external collaborators.
// They are environment-only so a config file can be committed safely.
type Secrets struct {
	EmailUser    string `env:"EMAIL_USER,required"`
	EmailPass    string `env:"EMAIL_PASS,required"`
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`
}

// LoadSecrets reads a .env file if present, then parses the environment.
// A missing .env is fine; missing variables are not.
func LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("config: parse env: %w", err)
	}
	return s, nil
}
