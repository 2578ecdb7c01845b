package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxTeamSize caps how many members a single team may have.
	DefaultMaxTeamSize = 6
	// DefaultSelectionCap caps how many teams may select the same
	// problem statement.
	DefaultSelectionCap = 4
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	TokenSecret string

	MaxTeamSize  int
	SelectionCap int
}

// Load reads configuration from the environment. A .env file is honored
// when present so local runs need no exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		TokenSecret:  os.Getenv("TOKEN_AUTH_SECRET"),
		MaxTeamSize:  DefaultMaxTeamSize,
		SelectionCap: DefaultSelectionCap,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	var err error
	if cfg.MaxTeamSize, err = getEnvInt("MAX_TEAM_SIZE", DefaultMaxTeamSize); err != nil {
		return nil, err
	}
	if cfg.SelectionCap, err = getEnvInt("SELECTION_CAP", DefaultSelectionCap); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if n < 1 {
		return 0, errors.Errorf("%s must be positive", key)
	}
	return n, nil
}
