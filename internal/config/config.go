// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	DefaultDelay    time.Duration
	ShutdownTimeout time.Duration
	StreamBuffer    int
	Gateway         GatewayConfig
	Uploads         UploadConfig
}

// GatewayConfig bounds calls to the identity gateway.
type GatewayConfig struct {
	Mode           string // only "dryrun" ships with the server
	AuthTimeout    time.Duration
	SendTimeout    time.Duration
	ReleaseTimeout time.Duration
}

// UploadConfig controls the credential and message file stores.
type UploadConfig struct {
	MaxBytes      int64
	TTL           time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/campaignd.db"),
		DefaultDelay:    time.Duration(getEnvInt("DEFAULT_DELAY_SECONDS", 20)) * time.Second,
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		StreamBuffer:    getEnvInt("STREAM_BUFFER", 256),
		Gateway: GatewayConfig{
			Mode:           strings.ToLower(getEnv("GATEWAY_MODE", "dryrun")),
			AuthTimeout:    getEnvDuration("GATEWAY_AUTH_TIMEOUT", 60*time.Second),
			SendTimeout:    getEnvDuration("GATEWAY_SEND_TIMEOUT", 30*time.Second),
			ReleaseTimeout: getEnvDuration("GATEWAY_RELEASE_TIMEOUT", 10*time.Second),
		},
		Uploads: UploadConfig{
			MaxBytes:      int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
			TTL:           getEnvDuration("UPLOAD_TTL", 24*time.Hour),
			SweepInterval: getEnvDuration("UPLOAD_SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.DefaultDelay < 0 {
		return fmt.Errorf("DEFAULT_DELAY_SECONDS must be >= 0")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("STREAM_BUFFER must be > 0")
	}
	if c.Gateway.Mode != "dryrun" {
		return fmt.Errorf("GATEWAY_MODE %q is not supported", c.Gateway.Mode)
	}
	if c.Gateway.AuthTimeout <= 0 || c.Gateway.SendTimeout <= 0 || c.Gateway.ReleaseTimeout <= 0 {
		return fmt.Errorf("gateway timeouts must be > 0")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.Uploads.TTL <= 0 {
		return fmt.Errorf("UPLOAD_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
