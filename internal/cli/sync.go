package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	syncer "github.com/chatlink/chatlink/internal/sync"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push eligible content to the selected knowledge source",
	Long: `Push eligible content to the selected knowledge source.

Walks the local content store page by page and submits each page's
URLs as training material. A failed page is retried with backoff; the
offset does not advance past a failed page, so a rerun picks up where
it left off.

Example:
  chatlink sync --page-size 10`,
	RunE: runSync,
}

var syncFlags struct {
	PageSize int
	Retries  int
	ItemID   int64
}

func init() {
	syncCmd.Flags().IntVar(&syncFlags.PageSize, "page-size", 0, "Items per page (defaults to config)")
	syncCmd.Flags().IntVar(&syncFlags.Retries, "retries", 3, "Retry attempts per failed page")
	syncCmd.Flags().Int64Var(&syncFlags.ItemID, "item", 0, "Sync a single content item by ID")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, st, err := openEnvironment()
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := ensureAuthenticated(cfg, st.Settings())
	if err != nil {
		return err
	}

	orchestrator := syncer.NewOrchestrator(st, client)
	ctx := context.Background()

	if syncFlags.ItemID != 0 {
		if err := orchestrator.SyncItem(ctx, syncFlags.ItemID); err != nil {
			return fmt.Errorf("sync of item %d failed: %w", syncFlags.ItemID, err)
		}
		fmt.Printf("Item %d synced\n", syncFlags.ItemID)
		return nil
	}

	pageSize := syncFlags.PageSize
	if pageSize <= 0 {
		pageSize = cfg.Sync.PageSize
	}

	offset := 0
	attempts := 0
	start := time.Now()
	for {
		result, err := orchestrator.Step(ctx, offset, pageSize, cfg.Sync.ContentTypes)
		if err != nil {
			attempts++
			if attempts > syncFlags.Retries {
				return fmt.Errorf("sync aborted at offset %d after %d attempts: %w", offset, attempts, err)
			}
			backoff := time.Duration(attempts) * 2 * time.Second
			fmt.Printf("Page at offset %d failed (%v), retrying in %s...\n", offset, err, backoff)
			time.Sleep(backoff)
			continue
		}
		attempts = 0

		fmt.Printf("Synced %d/%d items\n", result.Synced, result.Total)
		if result.Complete {
			fmt.Printf("Sync complete: %d items in %s\n", result.Total, time.Since(start).Round(time.Millisecond))
			return nil
		}
		offset = result.NextOffset
	}
}
