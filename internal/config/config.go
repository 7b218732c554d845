// Package config reads server settings from the environment.
//
// Values come from real environment variables first; an optional .env file
// fills in anything unset (godotenv never overrides existing variables).
// Every setting has a default except JWT_SECRET, and invalid values are
// reported as errors so the server refuses to start with a bad config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// minSecretLength matches the JWT signer's own requirement.
const minSecretLength = 16

type Config struct {
	Port          int
	Store         string
	DBPath        string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	TokenTTL      time.Duration
	StoreTimeout  time.Duration
	LogLevel      slog.Level
}

// Default returns the configuration used when no variables are set,
// minus the secret.
func Default() Config {
	return Config{
		Port:          8080,
		Store:         StoreSQLite,
		DBPath:        "data/ballots.db",
		MongoDatabase: "campus_ballot",
		TokenTTL:      24 * time.Hour,
		StoreTimeout:  5 * time.Second,
		LogLevel:      slog.LevelInfo,
	}
}

// Load reads envFile (if it exists) into the environment, then builds a
// Config from environment variables. Pass "" to skip the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config using lookup for each variable.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("PORT: invalid port %q", v))
		} else {
			cfg.Port = port
		}
	}

	if v, ok := get("STORE"); ok {
		cfg.Store = strings.ToLower(v)
	}
	switch cfg.Store {
	case StoreSQLite, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE: must be %q or %q, got %q", StoreSQLite, StoreMongo, cfg.Store))
	}

	if v, ok := get("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := get("MONGO_URI"); ok {
		cfg.MongoURI = v
	}
	if v, ok := get("MONGO_DATABASE"); ok {
		cfg.MongoDatabase = v
	}
	if cfg.Store == StoreMongo && cfg.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI: required when STORE=mongo"))
	}

	cfg.JWTSecret, _ = get("JWT_SECRET")
	if len(cfg.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET: must be at least %d characters", minSecretLength))
	}

	if v, ok := get("TOKEN_TTL"); ok {
		if d, err := parsePositiveDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_TTL: %w", err))
		} else {
			cfg.TokenTTL = d
		}
	}
	if v, ok := get("STORE_TIMEOUT"); ok {
		if d, err := parsePositiveDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("STORE_TIMEOUT: %w", err))
		} else {
			cfg.StoreTimeout = d
		}
	}

	if v, ok := get("LOG_LEVEL"); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: unknown level %q", v))
		} else {
			cfg.LogLevel = level
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func parsePositiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}
