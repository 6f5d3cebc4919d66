package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cheeseagent/pkg/agent"
	"cheeseagent/pkg/config"
	"cheeseagent/pkg/logger"
	"cheeseagent/pkg/source"
)

var (
	// Scrape command flags
	targetPerCategory int
	maxCandidates     int
	imagesDir         string
	stateFile         string
	sourceEndpoint    string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape pass over all cheese categories",
	Long: `Run a full scrape pass: for each of the six cheese categories,
pull candidates from the image search until the per-category target is
met or the candidate budget is exhausted. Accepted images are written to
the images directory and enqueued in the state file for upload.

Falling short of a target is not an error; the run reports the shortfall
and continues. The command exits non-zero only when the image source
cannot be reached at all or the local setup is broken.`,
	Example: `  # Scrape with defaults (2 images per category)
  cheeseagent scrape

  # Collect more images with a bigger candidate budget
  cheeseagent scrape --target 5 --max-candidates 40

  # Use a different state file and images directory
  cheeseagent scrape --state-file /tmp/state.json --images-dir /tmp/images`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVarP(&targetPerCategory, "target", "t", 0, "accepted images to collect per category")
	scrapeCmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "candidates to examine per category before giving up")
	scrapeCmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory for scraped images")
	scrapeCmd.Flags().StringVar(&stateFile, "state-file", "", "path of the JSON state file")
	scrapeCmd.Flags().StringVar(&sourceEndpoint, "source-endpoint", "", "image search endpoint base URL")

	// The same flags work on the bare root invocation.
	rootCmd.Flags().IntVarP(&targetPerCategory, "target", "t", 0, "accepted images to collect per category")
	rootCmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "candidates to examine per category before giving up")
	rootCmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory for scraped images")
	rootCmd.Flags().StringVar(&stateFile, "state-file", "", "path of the JSON state file")
	rootCmd.Flags().StringVar(&sourceEndpoint, "source-endpoint", "", "image search endpoint base URL")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	if targetPerCategory > 0 {
		flags["target"] = targetPerCategory
	}
	if maxCandidates > 0 {
		flags["max-candidates"] = maxCandidates
	}
	if imagesDir != "" {
		flags["images-dir"] = imagesDir
	}
	if stateFile != "" {
		flags["state-file"] = stateFile
	}
	if sourceEndpoint != "" {
		flags["source-endpoint"] = sourceEndpoint
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if cfg.Source.Endpoint == "" {
		return fmt.Errorf("no image search endpoint configured (set source.endpoint or CHEESEAGENT_SOURCE_ENDPOINT)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(cfg, source.NewClient(&cfg.Source))
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	summary, err := a.Run(ctx, agent.Options{
		TargetPerCategory:        cfg.Scrape.TargetPerCategory,
		MaxCandidatesPerCategory: cfg.Scrape.MaxCandidatesPerCategory,
	})
	if err != nil {
		return err
	}

	printSummary(a, summary)
	return nil
}

func printSummary(a *agent.Agent, summary *agent.Summary) {
	fmt.Println("\nScrape summary:")
	for _, stats := range summary.Categories {
		note := ""
		if stats.Shortfall {
			note = "  (short of target)"
		}
		fmt.Printf("  %-12s found %d, skipped %d, examined %d%s\n",
			stats.Category, stats.Found, stats.Skipped, stats.Examined, note)
	}
	fmt.Printf("Total new images: %d\n", summary.TotalFound)

	if current, err := a.Store().Load(); err == nil {
		fmt.Printf("Pending upload: %d image(s)\n", len(current.PendingUploads))
		if len(current.PendingUploads) > 0 {
			fmt.Println("\nAsk your assistant to upload them, or run: cheeseagent queue drain")
		}
	}
}
