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
	Port        string
	Environment string
	DatabaseURL string // storage descriptor handed to sessions created over HTTP

	Ava AvaConfig
	Geo GeoConfig
	SMS SMSConfig
}

// AvaConfig holds credentials and endpoints for the conversational backend.
type AvaConfig struct {
	BaseURL       string
	PrismURL      string
	Username      string
	Password      string
	StreamTimeout time.Duration
}

// GeoConfig controls the drop-off location search.
type GeoConfig struct {
	MapsAPIKey   string
	LocationsDir string
}

// SMSConfig holds RingCentral credentials for escalation messages.
type SMSConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	JWT          string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	streamTimeout := getEnvInt("AVA_STREAM_TIMEOUT_SECONDS", 60)
	if streamTimeout <= 0 {
		streamTimeout = 60
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Ava: AvaConfig{
			BaseURL:       getEnv("AVA_BASE_URL", "https://ava.andrew-chat.com"),
			PrismURL:      getEnv("PRISM_BASE_URL", "https://prism.andrew-chat.com"),
			Username:      getEnv("AVA_USER", "amit"),
			Password:      getEnv("AVA_PASS", ""),
			StreamTimeout: time.Duration(streamTimeout) * time.Second,
		},
		Geo: GeoConfig{
			MapsAPIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			LocationsDir: getEnv("LOCATIONS_DIR", "./data/by_state_csv"),
		},
		SMS: SMSConfig{
			BaseURL:      getEnv("RC_BASE_URL", "https://platform.ringcentral.com"),
			ClientID:     getEnv("RC_APP_CLIENT_ID", ""),
			ClientSecret: getEnv("RC_APP_CLIENT_SECRET", ""),
			JWT:          getEnv("RC_USER_JWT", ""),
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
	if c.Ava.BaseURL == "" {
		return fmt.Errorf("AVA_BASE_URL cannot be empty")
	}
	if c.Ava.PrismURL == "" {
		return fmt.Errorf("PRISM_BASE_URL cannot be empty")
	}
	if c.Ava.Username == "" {
		return fmt.Errorf("AVA_USER cannot be empty")
	}
	if c.Geo.LocationsDir == "" {
		return fmt.Errorf("LOCATIONS_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
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
