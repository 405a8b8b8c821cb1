package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config drives the deploy service. Values come from three layers, each
// overriding the previous: built-in defaults, an optional YAML file named by
// CONFIG_FILE, and plain environment variables.
// CardsDir is the filesystem root under which one directory per client ID is
// kept. BaseURL is the public prefix used to compose the card URL returned to
// callers. BodyLimit caps request bodies in bytes; deploys carry base64 images
// and media inline, so the default is generous. CaddyReload opts in to asking
// the fronting Caddy server to reload its config on startup; no deploy
// operation ever triggers a reload.
type Config struct {
	Port        int    `yaml:"port"`
	CardsDir    string `yaml:"cards_dir"`
	BaseURL     string `yaml:"base_url"`
	BodyLimit   int64  `yaml:"body_limit"`
	LogLevel    string `yaml:"log_level"`
	CaddyReload bool   `yaml:"caddy_reload"`
}

const (
	DefaultPort      = 4646
	DefaultCardsDir  = "/var/www/vcards"
	DefaultBaseURL   = "http://localhost:4646"
	DefaultBodyLimit = 50 << 20 // deploys carry base64 media inline
	DefaultLogLevel  = "info"

	ConfigFileEnvKey  = "CONFIG_FILE"
	PortEnvKey        = "PORT"
	CardsDirEnvKey    = "CARDS_DIR"
	BaseURLEnvKey     = "BASE_URL"
	BodyLimitEnvKey   = "BODY_LIMIT"
	LogLevelEnvKey    = "LOG_LEVEL"
	CaddyReloadEnvKey = "CADDY_RELOAD"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:      DefaultPort,
		CardsDir:  DefaultCardsDir,
		BaseURL:   DefaultBaseURL,
		BodyLimit: DefaultBodyLimit,
		LogLevel:  DefaultLogLevel,
	}
}

// ConfigFromEnv builds a validated Config from the optional YAML file plus
// environment variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(ConfigFileEnvKey); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if v := os.Getenv(PortEnvKey); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", PortEnvKey, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv(CardsDirEnvKey); v != "" {
		cfg.CardsDir = v
	}
	if v := os.Getenv(BaseURLEnvKey); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(BodyLimitEnvKey); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", BodyLimitEnvKey, err)
		}
		cfg.BodyLimit = n
	}
	if v := os.Getenv(LogLevelEnvKey); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(CaddyReloadEnvKey); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", CaddyReloadEnvKey, err)
		}
		cfg.CaddyReload = b
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535], got %d", c.Port)
	}
	if c.CardsDir == "" {
		return fmt.Errorf("cards_dir is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.BodyLimit <= 0 {
		return fmt.Errorf("body_limit must be positive, got %d", c.BodyLimit)
	}
	return nil
}

// CardURL composes the public URL for a client's card.
func (c Config) CardURL(clientID string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + clientID
}
