package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cheeseagent/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cheeseagent configuration.

Configuration is loaded from (highest precedence first): command line
flags, CHEESEAGENT_* environment variables, a .env file, a YAML config
file, and built-in defaults.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const exampleConfig = `# cheeseagent configuration
#
# Every option can also be set with CHEESEAGENT_* environment variables,
# e.g. CHEESEAGENT_SOURCE_ENDPOINT, CHEESEAGENT_SOURCE_API_KEY.

source:
  # Image search endpoint base URL (required for scraping)
  endpoint: ""
  # API key for the endpoint, if it needs one. Prefer the
  # CHEESEAGENT_SOURCE_API_KEY environment variable over this file.
  api_key: ""
  timeout: 30s
  requests_per_minute: 30
  max_retries: 3

scrape:
  target_per_category: 2
  max_candidates_per_category: 20
  min_width: 100
  min_height: 100
  max_file_size: 10485760

output:
  images_directory: scraped_cheese_images

state:
  file: cheese_agent_state.json

upload:
  # External command invoked per pending entry by "queue drain".
  # It receives the file path plus one --tag key=value pair per tag.
  command: []

logging:
  level: info
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "cheeseagent.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	// Never print the key itself.
	if cfg.Source.APIKey != "" {
		cfg.Source.APIKey = "****"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
