package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Simplification configuration
	Simplify SimplifyConfig

	// Background runner configuration
	AutoRun AutoRunConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// SimplifyConfig holds settings for the external simplification API
// and for how originals are kept around.
type SimplifyConfig struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	MaxRequests       int // max requests per interval, used by the quota precheck
	CallTimeout       time.Duration
	DefaultSourceLang string
	// LanguageMappings maps a source language to the target languages
	// texts in that language are simplified into.
	LanguageMappings map[string][]string
	// KeepUnusedTexts keeps an original (and its simplifications) even
	// after its last usage link is removed, so identical text found
	// later is never re-sent to the paid API.
	KeepUnusedTexts bool
	TenantID        int
}

// AutoRunConfig holds background runner settings
type AutoRunConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	mappings, err := parseLanguageMappings(getEnv("SIMPLIFY_LANGUAGE_MAPPINGS", "de:de-x-easy"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "easy_language"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Simplify: SimplifyConfig{
			Provider:          getEnv("SIMPLIFY_PROVIDER", "openai"),
			APIKey:            getEnv("SIMPLIFY_API_KEY", ""),
			BaseURL:           getEnv("SIMPLIFY_BASE_URL", ""),
			Model:             getEnv("SIMPLIFY_MODEL", "gpt-4o-mini"),
			MaxRequests:       getIntEnv("SIMPLIFY_MAX_REQUESTS", 25),
			CallTimeout:       getDurationEnv("SIMPLIFY_TIMEOUT", 30*time.Second),
			DefaultSourceLang: getEnv("SIMPLIFY_DEFAULT_SOURCE_LANG", "de"),
			LanguageMappings:  mappings,
			KeepUnusedTexts:   getBoolEnv("SIMPLIFY_KEEP_UNUSED_TEXTS", true),
			TenantID:          getIntEnv("TENANT_ID", 1),
		},
		AutoRun: AutoRunConfig{
			Enabled:  getBoolEnv("AUTO_RUN_ENABLED", true),
			Interval: getDurationEnv("AUTO_RUN_INTERVAL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if len(c.Simplify.LanguageMappings) == 0 {
		return fmt.Errorf("SIMPLIFY_LANGUAGE_MAPPINGS is required")
	}
	if c.Simplify.MaxRequests <= 0 {
		return fmt.Errorf("SIMPLIFY_MAX_REQUESTS must be positive")
	}
	return nil
}

// TargetsFor returns the target languages configured for a source language.
func (c *SimplifyConfig) TargetsFor(sourceLang string) []string {
	return c.LanguageMappings[sourceLang]
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// parseLanguageMappings parses "src:tgt1,tgt2;src2:tgt3" into a map.
func parseLanguageMappings(raw string) (map[string][]string, error) {
	mappings := make(map[string][]string)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid language mapping %q (want src:tgt1,tgt2)", pair)
		}
		src := strings.TrimSpace(parts[0])
		var targets []string
		for _, tgt := range strings.Split(parts[1], ",") {
			tgt = strings.TrimSpace(tgt)
			if tgt != "" {
				targets = append(targets, tgt)
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("language mapping %q has no targets", pair)
		}
		mappings[src] = targets
	}
	return mappings, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
