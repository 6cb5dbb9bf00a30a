// ABOUTME: Configuration loading and parsing for fold-assistant
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete fold-assistant configuration
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Database  DatabaseConfig  `yaml:"database"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Run       RunConfig       `yaml:"run"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AssistantConfig holds the hosted completion service credentials and
// model selection
type AssistantConfig struct {
	APIKey      string `yaml:"api_key"`
	AssistantID string `yaml:"assistant_id"`
	Model       string `yaml:"model"`
	VoiceModel  string `yaml:"voice_model"`
	Voice       string `yaml:"voice"`
	ImageModel  string `yaml:"image_model"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PricingConfig holds the price table overrides. Keys of unit_prices
// are resource kind names; values are decimal strings. Empty fields
// fall back to the built-in defaults.
type PricingConfig struct {
	UnitPrices    map[string]string `yaml:"unit_prices"`
	Margin        string            `yaml:"margin"`
	MinimumCharge string            `yaml:"minimum_charge"`
}

// RunConfig holds run state machine timing configuration
type RunConfig struct {
	PollInterval   time.Duration `yaml:"-"`
	MaxRunDuration time.Duration `yaml:"-"`

	ShortMessageThreshold int `yaml:"short_message_threshold"`
	VoiceReplyChance      int `yaml:"voice_reply_chance"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw   string `yaml:"poll_interval"`
	MaxRunDurationRaw string `yaml:"max_run_duration"`
}

// SessionConfig holds conversation lifecycle configuration
type SessionConfig struct {
	ThreadTTL time.Duration `yaml:"-"`

	InitialBalance string `yaml:"initial_balance"`

	// Raw string value for YAML unmarshaling
	ThreadTTLRaw string `yaml:"thread_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File receives a JSON copy of the log stream when set
	File string `yaml:"file"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant.api_key is required")
	}
	if c.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant.assistant_id is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Run.VoiceReplyChance < 0 {
		return fmt.Errorf("run.voice_reply_chance must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Run.PollIntervalRaw != "" {
		cfg.Run.PollInterval, err = time.ParseDuration(cfg.Run.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Run.PollIntervalRaw, err)
		}
	}

	if cfg.Run.MaxRunDurationRaw != "" {
		cfg.Run.MaxRunDuration, err = time.ParseDuration(cfg.Run.MaxRunDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing max_run_duration %q: %w", cfg.Run.MaxRunDurationRaw, err)
		}
	}

	if cfg.Session.ThreadTTLRaw != "" {
		cfg.Session.ThreadTTL, err = time.ParseDuration(cfg.Session.ThreadTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing thread_ttl %q: %w", cfg.Session.ThreadTTLRaw, err)
		}
	}

	return nil
}
