package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" round-trip.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all configuration options for the cheese agent
type Config struct {
	// Image search source settings
	Source SourceConfig `yaml:"source" json:"source"`

	// Scrape run settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Local output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// State file settings
	State StateConfig `yaml:"state" json:"state"`

	// Upload handoff settings
	Upload UploadConfig `yaml:"upload" json:"upload"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig holds image-search endpoint configuration
type SourceConfig struct {
	Endpoint          string   `yaml:"endpoint" json:"endpoint"`
	APIKey            string   `yaml:"api_key" json:"api_key"`
	UserAgent         string   `yaml:"user_agent" json:"user_agent"`
	Timeout           Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int      `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int      `yaml:"max_retries" json:"max_retries"`
}

// ScrapeConfig holds per-run targets and candidate validation limits
type ScrapeConfig struct {
	TargetPerCategory        int   `yaml:"target_per_category" json:"target_per_category"`
	MaxCandidatesPerCategory int   `yaml:"max_candidates_per_category" json:"max_candidates_per_category"`
	MinWidth                 int   `yaml:"min_width" json:"min_width"`
	MinHeight                int   `yaml:"min_height" json:"min_height"`
	MaxFileSize              int64 `yaml:"max_file_size" json:"max_file_size"`
}

// OutputConfig holds the local images directory configuration
type OutputConfig struct {
	ImagesDirectory string `yaml:"images_directory" json:"images_directory"`
}

// StateConfig holds the state file location
type StateConfig struct {
	File string `yaml:"file" json:"file"`
}

// UploadConfig holds the external upload tool invocation. The agent
// never uploads anything itself; it only shells out to the configured
// command, one call per pending entry.
type UploadConfig struct {
	Command []string `yaml:"command" json:"command"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:           Duration(30 * time.Second),
			RequestsPerMinute: 30,
			MaxRetries:        3,
		},
		Scrape: ScrapeConfig{
			TargetPerCategory:        2,
			MaxCandidatesPerCategory: 20,
			MinWidth:                 100,
			MinHeight:                100,
			MaxFileSize:              10 * 1024 * 1024,
		},
		Output: OutputConfig{
			ImagesDirectory: "scraped_cheese_images",
		},
		State: StateConfig{
			File: "cheese_agent_state.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if endpoint := os.Getenv("CHEESEAGENT_SOURCE_ENDPOINT"); endpoint != "" {
		c.Source.Endpoint = endpoint
	}
	if apiKey := os.Getenv("CHEESEAGENT_SOURCE_API_KEY"); apiKey != "" {
		c.Source.APIKey = apiKey
	}
	if rpm := os.Getenv("CHEESEAGENT_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.Source.RequestsPerMinute = val
		}
	}
	if target := os.Getenv("CHEESEAGENT_TARGET_PER_CATEGORY"); target != "" {
		var val int
		fmt.Sscanf(target, "%d", &val)
		if val > 0 {
			c.Scrape.TargetPerCategory = val
		}
	}
	if dir := os.Getenv("CHEESEAGENT_IMAGES_DIR"); dir != "" {
		c.Output.ImagesDirectory = dir
	}
	if stateFile := os.Getenv("CHEESEAGENT_STATE_FILE"); stateFile != "" {
		c.State.File = stateFile
	}
	if logLevel := os.Getenv("CHEESEAGENT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"cheeseagent.yaml",
		"cheeseagent.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "cheeseagent", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".cheeseagent.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Timeout <= 0 {
		errs = append(errs, errors.New("source timeout must be positive"))
	}
	if c.Source.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Source.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Scrape.TargetPerCategory <= 0 {
		errs = append(errs, errors.New("target per category must be positive"))
	}
	if c.Scrape.MaxCandidatesPerCategory < c.Scrape.TargetPerCategory {
		errs = append(errs, errors.New("candidate budget cannot be smaller than the target"))
	}
	if c.Scrape.MinWidth < 0 || c.Scrape.MinHeight < 0 {
		errs = append(errs, errors.New("minimum dimensions cannot be negative"))
	}

	if c.Output.ImagesDirectory == "" {
		errs = append(errs, errors.New("images directory is required"))
	}
	if c.State.File == "" {
		errs = append(errs, errors.New("state file path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if endpoint, ok := flags["source-endpoint"].(string); ok && endpoint != "" {
		c.Source.Endpoint = endpoint
	}
	if target, ok := flags["target"].(int); ok && target > 0 {
		c.Scrape.TargetPerCategory = target
	}
	if budget, ok := flags["max-candidates"].(int); ok && budget > 0 {
		c.Scrape.MaxCandidatesPerCategory = budget
	}
	if dir, ok := flags["images-dir"].(string); ok && dir != "" {
		c.Output.ImagesDirectory = dir
	}
	if stateFile, ok := flags["state-file"].(string); ok && stateFile != "" {
		c.State.File = stateFile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cheeseagent.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
