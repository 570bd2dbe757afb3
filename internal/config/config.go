// Package config loads provider settings: defaults, then an optional TOML file
// named by MCPC_CONFIG, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds runtime configuration for an MCPC provider
type Config struct {
	ProviderName string      `toml:"provider_name"`
	ProgressRate float64     `toml:"progress_rate"` // task_update messages per second per task
	Debug        DebugConfig `toml:"debug"`
}

// DebugConfig controls the callback log
type DebugConfig struct {
	Enabled     bool   `toml:"enabled"`
	StorageType string `toml:"storage"` // "memory" or "file"
	StoragePath string `toml:"path"`    // File path for file storage
	RetentionH  int    `toml:"retention_hours"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ProviderName: "mcpc-provider",
		ProgressRate: 10,
		Debug: DebugConfig{
			Enabled:     false,
			StorageType: "memory",
			StoragePath: "./mcpc_callbacks.db",
			RetentionH:  24,
		},
	}
}

// Load reads the file named by MCPC_CONFIG (if any) and applies environment overrides
func Load() (*Config, error) {
	return LoadFile(os.Getenv("MCPC_CONFIG"))
}

// LoadFile reads path (if non-empty) over the defaults and applies environment overrides
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.ProviderName == "" {
		return fmt.Errorf("provider_name must not be empty")
	}
	switch c.Debug.StorageType {
	case "memory", "file":
	default:
		return fmt.Errorf("unsupported debug storage type: %s", c.Debug.StorageType)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ProviderName = getEnvDefault("MCPC_PROVIDER", c.ProviderName)
	c.ProgressRate = getEnvFloat("MCPC_PROGRESS_RATE", c.ProgressRate)
	c.Debug.Enabled = getEnvBool("MCP_DEBUG", c.Debug.Enabled)
	c.Debug.StorageType = getEnvDefault("MCP_DEBUG_STORAGE", c.Debug.StorageType)
	c.Debug.StoragePath = getEnvDefault("MCP_DEBUG_PATH", c.Debug.StoragePath)
	c.Debug.RetentionH = getEnvInt("MCP_DEBUG_RETENTION_H", c.Debug.RetentionH)
}

// Helper functions for environment variables
func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
