package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cheeseagent/pkg/config"
	"cheeseagent/pkg/logger"
	"cheeseagent/pkg/queue"
	"cheeseagent/pkg/state"
	"cheeseagent/pkg/storage"
)

var (
	// queue command flags
	removeKeep   bool
	drainCommand []string
)

// queueCmd groups the pending-upload queue operations.
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the pending-upload queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries pending upload",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <item-id>",
	Short: "Remove a pending entry and delete its local file",
	Long: `Remove the pending entry for an item id. The local file is deleted
with it unless --keep-file is given. Removing an id that is not queued
is reported as an error, not silently ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueueRemove,
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Upload every pending entry through the external upload command",
	Long: `Drain the queue by invoking the configured external upload command
once per pending entry. Each successful upload removes the entry and
deletes the local file; failures leave the entry in place for a later
retry. Tags are read from the state file at drain time, so edits made
by hand are honored.`,
	Args: cobra.NoArgs,
	RunE: runQueueDrain,
}

var queueServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the queue over MCP stdio for an external assistant",
	Long: `Expose the pending queue as MCP tools on stdin/stdout so an
assistant can list queued images and mark them uploaded. The assistant
performs the uploads with its own tooling; this server only applies the
completions it reports.`,
	Args: cobra.NoArgs,
	RunE: runQueueServe,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueDrainCmd)
	queueCmd.AddCommand(queueServeCmd)

	queueRemoveCmd.Flags().BoolVar(&removeKeep, "keep-file", false, "keep the local file on disk")
	queueDrainCmd.Flags().StringSliceVar(&drainCommand, "command", nil, "upload command to run per entry (overrides config)")
}

// queueSetup loads config, logging, and the store/images pair shared by
// all queue subcommands.
func queueSetup() (*config.Config, *state.Store, *storage.ImageStore, error) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	images, err := storage.NewImageStore(cfg.Output.ImagesDirectory)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, state.NewStore(cfg.State.File), images, nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	_, store, _, err := queueSetup()
	if err != nil {
		return err
	}

	current, err := store.Load()
	if err != nil {
		return err
	}

	if len(current.PendingUploads) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}

	fmt.Printf("%d entry(ies) pending upload:\n\n", len(current.PendingUploads))
	for _, entry := range current.PendingUploads {
		tags := make([]string, 0, len(entry.Tags))
		for k, v := range entry.Tags {
			tags = append(tags, k+"="+v)
		}
		fmt.Printf("  %s  %-12s %s\n", entry.ItemID, entry.Category, entry.LocalPath)
		if len(tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(tags, ", "))
		}
	}
	return nil
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	_, store, images, err := queueSetup()
	if err != nil {
		return err
	}

	itemID := strings.TrimSpace(args[0])
	removed, err := store.DequeueUpload(itemID)
	if err != nil {
		if state.IsNotFound(err) {
			return fmt.Errorf("no pending upload for item %s", itemID)
		}
		return err
	}

	fmt.Printf("Removed %s from the queue.\n", removed.ItemID)
	if !removeKeep {
		if err := images.Remove(removed.LocalPath); err != nil {
			return err
		}
		fmt.Printf("Deleted %s.\n", removed.LocalPath)
	}
	return nil
}

func runQueueDrain(cmd *cobra.Command, args []string) error {
	cfg, store, images, err := queueSetup()
	if err != nil {
		return err
	}

	command := cfg.Upload.Command
	if len(drainCommand) > 0 {
		command = drainCommand
	}
	uploader, err := queue.NewExecUploader(command)
	if err != nil {
		return fmt.Errorf("no upload command configured (set upload.command or pass --command)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := queue.NewConsumer(store, images, uploader).Drain(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %d, failed %d.\n", summary.Uploaded, summary.Failed)
	return nil
}

func runQueueServe(cmd *cobra.Command, args []string) error {
	_, store, images, err := queueSetup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return queue.NewMCPServer(store, images, version).Run(ctx)
}
