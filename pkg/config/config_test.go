package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Scrape.TargetPerCategory)
	assert.Equal(t, 20, cfg.Scrape.MaxCandidatesPerCategory)
	assert.Equal(t, 100, cfg.Scrape.MinWidth)
	assert.Equal(t, 100, cfg.Scrape.MinHeight)
	assert.Equal(t, int64(10*1024*1024), cfg.Scrape.MaxFileSize)
	assert.Equal(t, "scraped_cheese_images", cfg.Output.ImagesDirectory)
	assert.Equal(t, "cheese_agent_state.json", cfg.State.File)
	assert.Equal(t, Duration(30*time.Second), cfg.Source.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
source:
  endpoint: https://search.example/api
  api_key: secret
  timeout: 5s
  requests_per_minute: 10
scrape:
  target_per_category: 4
  max_candidates_per_category: 40
state:
  file: /var/lib/cheeseagent/state.json
upload:
  command: ["upload-tool", "--dest", "gallery"]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://search.example/api", cfg.Source.Endpoint)
	assert.Equal(t, "secret", cfg.Source.APIKey)
	assert.Equal(t, Duration(5*time.Second), cfg.Source.Timeout)
	assert.Equal(t, 10, cfg.Source.RequestsPerMinute)
	assert.Equal(t, 4, cfg.Scrape.TargetPerCategory)
	assert.Equal(t, 40, cfg.Scrape.MaxCandidatesPerCategory)
	assert.Equal(t, "/var/lib/cheeseagent/state.json", cfg.State.File)
	assert.Equal(t, []string{"upload-tool", "--dest", "gallery"}, cfg.Upload.Command)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "scraped_cheese_images", cfg.Output.ImagesDirectory)
}

func TestLoadFromFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  timeout: soon\n"), 0600))

	cfg := DefaultConfig()
	require.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHEESEAGENT_SOURCE_ENDPOINT", "https://env.example/api")
	t.Setenv("CHEESEAGENT_SOURCE_API_KEY", "env-key")
	t.Setenv("CHEESEAGENT_REQUESTS_PER_MINUTE", "7")
	t.Setenv("CHEESEAGENT_TARGET_PER_CATEGORY", "9")
	t.Setenv("CHEESEAGENT_IMAGES_DIR", "/tmp/cheese")
	t.Setenv("CHEESEAGENT_STATE_FILE", "/tmp/state.json")
	t.Setenv("CHEESEAGENT_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://env.example/api", cfg.Source.Endpoint)
	assert.Equal(t, "env-key", cfg.Source.APIKey)
	assert.Equal(t, 7, cfg.Source.RequestsPerMinute)
	assert.Equal(t, 9, cfg.Scrape.TargetPerCategory)
	assert.Equal(t, "/tmp/cheese", cfg.Output.ImagesDirectory)
	assert.Equal(t, "/tmp/state.json", cfg.State.File)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestMergeFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"source-endpoint": "https://flag.example/api",
		"target":          5,
		"max-candidates":  50,
		"images-dir":      "/flag/images",
		"state-file":      "/flag/state.json",
		"log-level":       "error",
	})

	assert.Equal(t, "https://flag.example/api", cfg.Source.Endpoint)
	assert.Equal(t, 5, cfg.Scrape.TargetPerCategory)
	assert.Equal(t, 50, cfg.Scrape.MaxCandidatesPerCategory)
	assert.Equal(t, "/flag/images", cfg.Output.ImagesDirectory)
	assert.Equal(t, "/flag/state.json", cfg.State.File)
	assert.Equal(t, "error", cfg.Logging.Level)

	// Empty and zero flag values never override.
	cfg.MergeFlags(map[string]interface{}{"source-endpoint": "", "target": 0})
	assert.Equal(t, "https://flag.example/api", cfg.Source.Endpoint)
	assert.Equal(t, 5, cfg.Scrape.TargetPerCategory)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ZeroTarget", func(c *Config) { c.Scrape.TargetPerCategory = 0 }},
		{"BudgetBelowTarget", func(c *Config) {
			c.Scrape.TargetPerCategory = 10
			c.Scrape.MaxCandidatesPerCategory = 5
		}},
		{"NegativeDimensions", func(c *Config) { c.Scrape.MinWidth = -1 }},
		{"MissingImagesDir", func(c *Config) { c.Output.ImagesDirectory = "" }},
		{"MissingStateFile", func(c *Config) { c.State.File = "" }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "loud" }},
		{"ZeroTimeout", func(c *Config) { c.Source.Timeout = 0 }},
		{"ZeroRPM", func(c *Config) { c.Source.RequestsPerMinute = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source.Endpoint = "https://search.example/api"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg.Source.Endpoint, loaded.Source.Endpoint)
	assert.Equal(t, cfg.Source.Timeout, loaded.Source.Timeout)
	assert.Equal(t, cfg.Scrape, loaded.Scrape)
}
