// Package config loads the server configuration from the environment.
//
// Values come from, in order of precedence:
//  1. real environment variables
//  2. an optional .env file (loaded with godotenv, never overriding 1)
//  3. the defaults below
//
// Load validates everything up front so a typo in PORT or LOG_LEVEL stops the
// process at startup instead of surfacing later as odd behaviour.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/openworld/internal/auth"
)

// DevJWTSecret is used when JWT_SECRET is unset outside production. Tokens
// signed with it are forgeable by anyone who has read this file.
const DevJWTSecret = "openworld-dev-secret-change-me"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// GitHub holds the optional OAuth app credentials.
type GitHub struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Config is the validated server configuration.
type Config struct {
	Env          string
	Port         int
	DBPath       string
	JWTSecret    string
	ClientOrigin string
	SeedSamples  bool
	LogLevel     slog.Level
	LogFormat    string // "text" or "json"
	GitHub       GitHub

	// InsecureSecret is true when JWTSecret fell back to DevJWTSecret.
	InsecureSecret bool
}

// GitHubEnabled reports whether GitHub sign-in routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// Load reads the configuration. envFile is the .env path to try; a missing
// file is not an error. Pass "" to skip .env loading entirely.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("port", "3000")
	v.SetDefault("db_path", "data/database.sqlite")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("client_origin", "http://localhost:5173")
	v.SetDefault("seed_samples", "true")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")

	cfg := &Config{
		Env:          strings.ToLower(v.GetString("app_env")),
		DBPath:       v.GetString("db_path"),
		JWTSecret:    v.GetString("jwt_secret"),
		ClientOrigin: strings.TrimSuffix(v.GetString("client_origin"), "/"),
		LogFormat:    strings.ToLower(v.GetString("log_format")),
		GitHub: GitHub{
			ClientID:     v.GetString("github.client_id"),
			ClientSecret: v.GetString("github.client_secret"),
			CallbackURL:  v.GetString("github.callback_url"),
		},
	}

	// viper's typed getters turn garbage into zero values; parse by hand so
	// bad input is reported.
	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("config: PORT must be a number between 1 and 65535, got %q", v.GetString("port"))
	}
	cfg.Port = port

	seed, err := strconv.ParseBool(v.GetString("seed_samples"))
	if err != nil {
		return nil, fmt.Errorf("config: SEED_SAMPLES must be a boolean, got %q", v.GetString("seed_samples"))
	}
	cfg.SeedSamples = seed

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("config: LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	if cfg.DBPath == "" {
		return nil, errors.New("config: DB_PATH must not be empty")
	}

	switch {
	case cfg.JWTSecret == "" && cfg.Env == EnvProduction:
		return nil, errors.New("config: JWT_SECRET is required when APP_ENV=production")
	case cfg.JWTSecret == "":
		cfg.JWTSecret = DevJWTSecret
		cfg.InsecureSecret = true
	case len(cfg.JWTSecret) < auth.MinSecretLength:
		return nil, fmt.Errorf("config: JWT_SECRET must be at least %d characters", auth.MinSecretLength)
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

// Addr is the listen address for net/http.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
