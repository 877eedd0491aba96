// Package config loads service configuration from an optional config.yaml
// file and SELAH_-prefixed environment variables (env wins).
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Environment string          `koanf:"environment"` // "production" disables console telemetry by default
	Server      ServerConfig    `koanf:"server"`
	Storage     StorageConfig   `koanf:"storage"`
	Redis       RedisConfig     `koanf:"redis"`
	Anthropic   AnthropicConfig `koanf:"anthropic"`
	Telemetry   TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	// Addr enables the Redis-backed resolution cache when set; empty means
	// the in-process cache is used.
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AnthropicConfig struct {
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float32 `koanf:"temperature"`
}

// TelemetryConfig controls event/envelope delivery.
// Remote delivery is off unless a token is configured. Console output is on
// outside production, or when Console is set explicitly.
type TelemetryConfig struct {
	Enabled          bool   `koanf:"enabled"`
	Token            string `koanf:"token"`
	OrgID            string `koanf:"org_id"`
	Endpoint         string `koanf:"endpoint"`
	DatasetEvents    string `koanf:"dataset_events"`
	DatasetEnvelopes string `koanf:"dataset_envelopes"`
	Console          bool   `koanf:"console"`
}

// ConsoleEnabled reports whether records should be written to local output.
func (c *Config) ConsoleEnabled() bool {
	return c.Environment != "production" || c.Telemetry.Console
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("SELAH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SELAH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"environment":                 "development",
		"server.port":                 8080,
		"storage.path":                "./data/selah.db",
		"anthropic.model":             "claude-sonnet-4-20250514",
		"anthropic.max_tokens":        1024,
		"anthropic.temperature":       0.7,
		"telemetry.enabled":           true,
		"telemetry.endpoint":          "https://api.axiom.co",
		"telemetry.dataset_events":    "companion-events",
		"telemetry.dataset_envelopes": "companion-envelopes",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets so config.yaml can carry
	// ${VAR} placeholders instead of literal keys.
	cfg.Anthropic.APIKey = substituteEnvVars(cfg.Anthropic.APIKey)
	cfg.Telemetry.Token = substituteEnvVars(cfg.Telemetry.Token)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
