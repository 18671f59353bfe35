package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskmirror/internal/config"
)

// newResetCmd creates the reset command
func newResetCmd() *cobra.Command {
	var accountName string
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear sync tracking state for an account",
		Long: `Clear the account's id and fingerprint tracking maps and zero today's
quota usage. The next sync run re-evaluates every task as new, which can
create duplicates on the remote side; run 'taskmirror dedup' afterwards
if that happens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(config.GetConfig(), accountName)
			if err != nil {
				return err
			}

			if !force {
				fmt.Printf("Reset sync state for account %q? The next sync re-sends everything. [y/N]: ", account)
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					fmt.Println("Cancelled")
					return nil
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Cancelled")
					return nil
				}
			}

			app, cleanup, err := newApp(account)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.engine.ResetSyncState(context.Background(), account); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Printf("✓ Sync state cleared for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountName, "account", "a", "", "account to reset")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")
	return cmd
}
