package web

import (
	"encoding/json"
	"os"

	"github.com/contact-scrub/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig  `json:"server"`
	Auth     AuthConfig    `json:"auth"`
	Features FeatureConfig `json:"features"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	MetricsEnabled bool  `json:"metrics_enabled"`
	MaxUploadMB    int64 `json:"max_upload_mb"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Features: FeatureConfig{
			MetricsEnabled: true,
			MaxUploadMB:    64,
		},
	}
}

// ConfigFromEnv builds the server configuration from the process environment.
func ConfigFromEnv(env config.Env) *Config {
	cfg := DefaultConfig()
	cfg.Server.Host = env.WebHost
	cfg.Server.Port = env.WebPort
	if env.APIKey != "" {
		cfg.Auth = AuthConfig{Enabled: true, APIKey: env.APIKey}
	}
	return cfg
}
