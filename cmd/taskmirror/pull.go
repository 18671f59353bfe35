package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskmirror/internal/config"
)

// newPullCmd creates the pull command
func newPullCmd() *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull completion state back from the remote service",
		Long: `Read completion state from the remote service and mark the matching
local tasks completed. This is the only direction in which the remote
side is authoritative; nothing else is pulled.`,
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

			result, err := app.engine.PullCompletions(context.Background(), account)
			if err != nil {
				return fmt.Errorf("completion pull failed: %w", err)
			}

			fmt.Printf("Marked completed: %d\n", result.Updated)
			if result.AlreadyCompleted > 0 {
				fmt.Printf("Already done:     %d\n", result.AlreadyCompleted)
			}
			if result.NotFound > 0 {
				fmt.Printf("Missing remotely: %d\n", result.NotFound)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountName, "account", "a", "", "account to pull for")
	return cmd
}
