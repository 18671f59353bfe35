package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskmirror/engine"
	"taskmirror/internal/config"
)

// newDedupCmd creates the dedup command
func newDedupCmd() *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate tasks from the remote list",
		Long: `Scan the remote list for tasks sharing an exact title and delete all
but one copy per group. The copy currently tracked by the sync state is
kept when there is one; otherwise the most recently updated copy wins.

Deletes run through a small worker pool and pause collectively when the
remote API rate-limits, so a large cleanup proceeds without tripping the
limiter repeatedly.`,
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

			if err := app.engine.StartDuplicateSweep(context.Background(), account); err != nil {
				return fmt.Errorf("failed to start duplicate sweep: %w", err)
			}

			// The sweep is a background job; in one-shot mode we follow it
			// to completion.
			state := followSweep(app, account)
			printSweepState(state)
			if state.Status == engine.JobError {
				return fmt.Errorf("duplicate sweep failed: %s", state.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountName, "account", "a", "", "account to sweep")
	return cmd
}

func followSweep(app *App, account string) engine.DedupJobState {
	lastPhase := engine.JobPhase("")
	for {
		state, ok := app.engine.DuplicateSweepStatus(account)
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if state.Phase != lastPhase {
			switch state.Phase {
			case engine.PhaseScanning:
				fmt.Println("Scanning remote list...")
			case engine.PhaseDeleting:
				fmt.Printf("Deleting %d duplicates across %d groups...\n", state.Total, state.DuplicateGroups)
			}
			lastPhase = state.Phase
		}
		if state.Status != engine.JobRunning {
			return state
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func printSweepState(state engine.DedupJobState) {
	fmt.Printf("\nSweep %s: %s\n", state.JobID, state.Status)
	fmt.Printf("  Duplicate groups: %d\n", state.DuplicateGroups)
	fmt.Printf("  Deleted: %d of %d\n", state.Deleted, state.Total)
	if state.Errors > 0 {
		fmt.Printf("  Errors:  %d\n", state.Errors)
	}
	if state.Message != "" {
		fmt.Printf("  Message: %s\n", state.Message)
	}
	if !state.FinishedAt.IsZero() {
		fmt.Printf("  Took:    %s\n", state.FinishedAt.Sub(state.StartedAt).Round(time.Millisecond))
	}
}
