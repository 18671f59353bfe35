package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskmirror/engine"
	"taskmirror/internal/config"
)

// newSyncCmd creates the sync command
func newSyncCmd() *cobra.Command {
	var accountName string
	var force bool
	var taskID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local tasks to the remote service",
		Long: `Push open, due-dated local tasks to the remote task-tracking service.

Only tasks whose content changed since the last run are sent; unchanged
tasks cost no API calls. The run stops early when the daily call budget
or the wall-clock deadline is reached, and the remainder is picked up by
the next run.

Examples:
  taskmirror sync                    # Sync the configured account
  taskmirror sync --force            # Re-send every task, ignoring tracking
  taskmirror sync --task <id>        # Sync a single task after an edit
  taskmirror sync --account work     # Pick an account when several exist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(config.GetConfig(), accountName)
			if err != nil {
				return err
			}
			app, cleanup, err := newApp(account)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()

			if taskID != "" {
				summary, err := app.engine.SyncSingleTask(ctx, account, taskID)
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}
				printSummary(summary)
				return nil
			}

			summary, err := app.engine.StartSync(ctx, account, engine.SyncOptions{Force: force})
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			printSummary(summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountName, "account", "a", "", "account to sync")
	cmd.Flags().BoolVar(&force, "force", false, "clear tracking state and re-send every task")
	cmd.Flags().StringVar(&taskID, "task", "", "sync only the given local task id")

	return cmd
}

func printSummary(summary *engine.SyncSummary) {
	if summary.QuotaExceeded {
		fmt.Println("⚠ Daily API quota exhausted, sync not started")
		fmt.Printf("  Budget resets at %s\n", summary.RetryAfter.Format(time.RFC1123))
		return
	}

	fmt.Println("\n=== Sync Complete ===")
	fmt.Printf("Created:   %d\n", summary.Created)
	fmt.Printf("Updated:   %d\n", summary.Updated)
	if summary.Recreated > 0 {
		fmt.Printf("Recreated: %d (remote copies had vanished)\n", summary.Recreated)
	}
	fmt.Printf("Unchanged: %d\n", summary.Unchanged)
	if summary.Skipped > 0 {
		fmt.Printf("Skipped:   %d\n", summary.Skipped)
	}
	if summary.Errors > 0 {
		fmt.Printf("⚠ Errors:  %d (will retry on the next run)\n", summary.Errors)
	}
	fmt.Printf("Quota:     %d/%d calls used today\n", summary.Quota.Used, summary.Quota.Limit)
	if summary.Duration > 0 {
		fmt.Printf("Duration:  %s\n", summary.Duration.Round(time.Millisecond))
	}
	fmt.Println()
}
