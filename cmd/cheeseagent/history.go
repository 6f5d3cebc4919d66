package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// historyCmd prints the recorded run history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scrape runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, store, _, err := queueSetup()
	if err != nil {
		return err
	}

	current, err := store.Load()
	if err != nil {
		return err
	}

	if len(current.RunHistory) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, rec := range current.RunHistory {
		fmt.Printf("  %s  found %d image(s) in %s\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.ItemsFound,
			rec.CompletedAt.Sub(rec.StartedAt).Round(time.Second))
	}
	fmt.Printf("\n%d run(s), %d image(s) scraped all-time, %d pending upload.\n",
		len(current.RunHistory), len(current.ScrapedImages), len(current.PendingUploads))
	return nil
}
