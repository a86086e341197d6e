package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".ecoscan"
	fileName = "config.yaml"
)

// Config holds the application configuration.
type Config struct {
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Routing         RoutingConfig
	History         HistoryConfig
	Lookup          LookupConfig
	Log             LogConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.ecoscan/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Routing RoutingConfig `yaml:"routing"`
	History HistoryConfig `yaml:"history"`
	Lookup  LookupConfig  `yaml:"lookup"`
	Log     LogConfig     `yaml:"log"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
}

// HistoryConfig controls the local scan cache.
type HistoryConfig struct {
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit"`
}

// LookupConfig controls product lookups.
type LookupConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads ~/.ecoscan/config.yaml and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, filepath.Join(configDir, fileName))
}

// LoadFile loads configuration from a specific file. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(filepath.Dir(path), path)
}

func load(configDir, path string) (*Config, error) {
	fileConfig, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}

	defaults := FileConfig{
		Routing: DefaultRoutingConfig(),
		History: HistoryConfig{
			Path:  filepath.Join(configDir, "history.db"),
			Limit: 50,
		},
		Lookup: LookupConfig{
			BaseURL:   "https://world.openfoodfacts.org",
			UserAgent: "ecoscan/0.1",
			Timeout:   15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
	if err := mergo.Merge(fileConfig, defaults, mergo.WithTransformers(keepSetDurations{})); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	cfg := &Config{
		GoogleAPIKey:    getEnvOrDefault(fileConfig.APIKeys.Google, "GEMINI_API_KEY", "GOOGLE_API_KEY"),
		DeepSeekAPIKey:  getEnvOrDefault(fileConfig.APIKeys.DeepSeek, "DEEPSEEK_API_KEY"),
		OpenAIAPIKey:    getEnvOrDefault(fileConfig.APIKeys.OpenAI, "OPENAI_API_KEY"),
		AnthropicAPIKey: getEnvOrDefault(fileConfig.APIKeys.Anthropic, "ANTHROPIC_API_KEY"),
		Routing:         fileConfig.Routing,
		History:         fileConfig.History,
		Lookup:          fileConfig.Lookup,
		Log:             fileConfig.Log,
		ConfigDir:       configDir,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if err := c.Routing.Validate(); err != nil {
		return err
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("log.format must be text, json or logfmt, got %q", c.Log.Format)
	}
	return nil
}

// Providers lists the adapters ecoscan knows how to build.
var Providers = []string{"google", "deepseek", "openai", "anthropic"}

// APIKey returns the key configured for an adapter through the environment
// or the config file, or "" when none is set.
func (c *Config) APIKey(name string) string {
	switch name {
	case "google":
		return c.GoogleAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	return c.APIKey(name) != ""
}

// keepSetDurations stops mergo from replacing an explicitly configured zero
// duration with its default.
type keepSetDurations struct{}

func (keepSetDurations) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf((*time.Duration)(nil)) {
		return nil
	}
	// mergo only consults transformers for non-nil values; nil ones still
	// receive the default.
	return func(dst, src reflect.Value) error {
		return nil
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// getEnvOrDefault returns the first set environment variable,
// otherwise returns the default value.
func getEnvOrDefault(defaultValue string, envVars ...string) string {
	for _, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, dirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return configDir, nil
}
