package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version = "2.0.0"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command. Running it without a subcommand
// performs a full scrape pass, so the day-to-day invocation is just
// "cheeseagent".
var rootCmd = &cobra.Command{
	Use:   "cheeseagent",
	Short: "Scrape cheese photographs and queue them for upload",
	Long: `cheeseagent scrapes cheese photographs from a web image search,
stores them locally, and records pending-upload entries in a JSON state
file. A separate assistant (or any external tool) later drains the
queue; cheeseagent never uploads anything itself.

Running cheeseagent with no arguments performs a full scrape pass over
all six cheese categories.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./cheeseagent.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all log output except errors")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flag overrides for config.Load.
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if quiet {
		flags["log-level"] = "error"
	} else if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
