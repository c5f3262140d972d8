// Package config builds the process-wide configuration once at startup.
// Values come from an optional .env file and the environment; CLI flags bound to the
// same viper keys win over both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devJWTSecret = "dev-only-jwt-secret"

// Config holds runtime settings for the deployer.
type Config struct {
	Environment string
	LogLevel    string

	Port            string
	AllowedOrigins  string
	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration

	DBDriver    string
	DatabaseDSN string

	JWTSecret    string
	TokenTTL     time.Duration
	SharedSecret string

	GitHubToken    string
	GitHubUsername string
	GitHubAPIURL   string
	PagesBaseURL   string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	DefaultEvaluationURL string
}

// IsDevelopment reports whether APP_ENV is "development".
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// LLMConfigured reports whether a generation backend is available.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != "" && c.LLMBaseURL != ""
}

// SystemPagesBaseURL is the Pages origin for repositories owned by the system account.
// It is empty when neither PAGES_BASE_URL nor GITHUB_USERNAME is set.
func (c *Config) SystemPagesBaseURL() string {
	if c.PagesBaseURL != "" {
		return strings.TrimRight(c.PagesBaseURL, "/")
	}
	if c.GitHubUsername != "" {
		return "https://" + c.GitHubUsername + ".github.io"
	}
	return ""
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("body_limit_mb", 4)
	v.SetDefault("rate_limit_max", 60)
	v.SetDefault("rate_limit_window", 60*time.Second)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("database_dsn", "database.db")
	v.SetDefault("jwt_secret_key", "")
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("shared_secret", "")
	v.SetDefault("github_token", "")
	v.SetDefault("github_username", "")
	v.SetDefault("github_api_url", "https://api.github.com/")
	v.SetDefault("pages_base_url", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("default_evaluation_url", "")
}

// Load reads envFile (a missing file is fine) and then the environment.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	return LoadWith(v, envFile)
}

// LoadWith is Load on a caller-provided viper, so flags bound to v take part.
func LoadWith(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Environment:          v.GetString("app_env"),
		LogLevel:             v.GetString("log_level"),
		Port:                 v.GetString("port"),
		AllowedOrigins:       v.GetString("allowed_origins"),
		BodyLimitBytes:       v.GetInt("body_limit_mb") * 1024 * 1024,
		RateLimitMax:         v.GetInt("rate_limit_max"),
		RateLimitWindow:      v.GetDuration("rate_limit_window"),
		DBDriver:             strings.ToLower(v.GetString("db_driver")),
		DatabaseDSN:          v.GetString("database_dsn"),
		JWTSecret:            v.GetString("jwt_secret_key"),
		TokenTTL:             v.GetDuration("token_ttl"),
		SharedSecret:         v.GetString("shared_secret"),
		GitHubToken:          v.GetString("github_token"),
		GitHubUsername:       v.GetString("github_username"),
		GitHubAPIURL:         v.GetString("github_api_url"),
		PagesBaseURL:         v.GetString("pages_base_url"),
		LLMAPIKey:            v.GetString("llm_api_key"),
		LLMBaseURL:           strings.TrimRight(v.GetString("llm_base_url"), "/"),
		LLMModel:             v.GetString("llm_model"),
		DefaultEvaluationURL: v.GetString("default_evaluation_url"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT secret not configured (set JWT_SECRET_KEY)")
		}
		c.JWTSecret = devJWTSecret
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite, postgres or mysql)", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.BodyLimitBytes <= 0 {
		c.BodyLimitBytes = 4 * 1024 * 1024
	}
	if !strings.HasSuffix(c.GitHubAPIURL, "/") {
		c.GitHubAPIURL += "/"
	}
	return nil
}
