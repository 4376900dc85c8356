package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the store section
const (
	EnvDatabaseURL     = "POSECAM_DATABASE_URL"
	EnvCredentialsFile = "POSECAM_CREDENTIALS_FILE"
	EnvOrdersPath      = "POSECAM_ORDERS_PATH"
)

// LoadEnv loads a .env file into the process environment if it exists.
// Variables already set in the environment win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			debugMsg("CONFIG", fmt.Sprintf("No %s file found, using system environment variables", path))
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	debugMsg("CONFIG", fmt.Sprintf("Loaded environment variables from %s", path))
	return nil
}

// ApplyEnv overrides store settings from the environment
func ApplyEnv(s *StoreConfig) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		s.DatabaseURL = v
	}
	if v := os.Getenv(EnvCredentialsFile); v != "" {
		s.CredentialsFile = v
	}
	if v := os.Getenv(EnvOrdersPath); v != "" {
		s.OrdersPath = v
	}
}
