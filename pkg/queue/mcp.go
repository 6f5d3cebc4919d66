package queue

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cheeseagent/pkg/cheese"
	"cheeseagent/pkg/state"
	"cheeseagent/pkg/storage"
)

// MCPServer exposes the pending queue over the Model Context Protocol
// so an externally-controlled assistant can list queued assets and
// report completed uploads. The assistant does the uploading; the
// server only mutates the queue in response.
type MCPServer struct {
	store  *state.Store
	images *storage.ImageStore
	server *mcp.Server
}

// NewMCPServer builds the server and registers the queue tools.
func NewMCPServer(store *state.Store, images *storage.ImageStore, version string) *MCPServer {
	s := &MCPServer{
		store:  store,
		images: images,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "cheeseagent",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled or the
// client disconnects.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type listPendingArgs struct{}

type listPendingResult struct {
	Pending []cheese.PendingUploadEntry `json:"pending"`
	Count   int                         `json:"count"`
}

type markUploadedArgs struct {
	ItemID string `json:"item_id" jsonschema:"id of the pending item that was uploaded"`
}

type markUploadedResult struct {
	ItemID      string `json:"item_id"`
	LocalPath   string `json:"local_path"`
	FileDeleted bool   `json:"file_deleted"`
}

type queueStatsArgs struct{}

type queueStatsResult struct {
	TotalScraped int `json:"total_scraped"`
	PendingCount int `json:"pending_count"`
	Runs         int `json:"runs"`
}

func (s *MCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cheese_list_pending",
		Description: "List all cheese images queued for upload, with their local paths and current tags. Tags reflect the state file as it is on disk, including manual edits.",
	}, s.listPending)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cheese_mark_uploaded",
		Description: "Record that a pending cheese image was uploaded successfully. Removes its queue entry and deletes the local file. Call this only after the upload is confirmed.",
	}, s.markUploaded)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cheese_queue_stats",
		Description: "Summarize the scrape state: total images scraped, pending uploads, and recorded runs.",
	}, s.queueStats)
}

func (s *MCPServer) listPending(ctx context.Context, req *mcp.CallToolRequest, args listPendingArgs) (*mcp.CallToolResult, listPendingResult, error) {
	current, err := s.store.Load()
	if err != nil {
		return nil, listPendingResult{}, err
	}
	return nil, listPendingResult{
		Pending: current.PendingUploads,
		Count:   len(current.PendingUploads),
	}, nil
}

func (s *MCPServer) markUploaded(ctx context.Context, req *mcp.CallToolRequest, args markUploadedArgs) (*mcp.CallToolResult, markUploadedResult, error) {
	if args.ItemID == "" {
		return nil, markUploadedResult{}, fmt.Errorf("item_id is required")
	}

	removed, err := s.store.DequeueUpload(args.ItemID)
	if err != nil {
		// NotFound is surfaced to the assistant as a tool error so it can
		// distinguish "already removed" from "removal performed".
		return nil, markUploadedResult{}, err
	}

	fileDeleted := true
	if err := s.images.Remove(removed.LocalPath); err != nil {
		fileDeleted = false
	}

	return nil, markUploadedResult{
		ItemID:      removed.ItemID,
		LocalPath:   removed.LocalPath,
		FileDeleted: fileDeleted,
	}, nil
}

func (s *MCPServer) queueStats(ctx context.Context, req *mcp.CallToolRequest, args queueStatsArgs) (*mcp.CallToolResult, queueStatsResult, error) {
	current, err := s.store.Load()
	if err != nil {
		return nil, queueStatsResult{}, err
	}
	return nil, queueStatsResult{
		TotalScraped: len(current.ScrapedImages),
		PendingCount: len(current.PendingUploads),
		Runs:         len(current.RunHistory),
	}, nil
}
