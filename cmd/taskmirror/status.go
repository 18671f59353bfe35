package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taskmirror/internal/config"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	statusOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	var accountName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status for an account",
		Long: `Display the account's connection state, how many tasks are pending
synchronization, the daily API quota and the last sync time. Makes no
remote API calls.`,
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

			info, err := app.engine.SyncStatus(context.Background(), account)
			if err != nil {
				return fmt.Errorf("failed to get sync status: %w", err)
			}

			fmt.Println()
			fmt.Println(statusTitleStyle.Render(fmt.Sprintf("Account %q", account)))

			if info.Connected {
				fmt.Println("  Connection: " + statusOKStyle.Render("connected"))
			} else {
				fmt.Println("  Connection: " + statusWarnStyle.Render("not connected"))
				fmt.Println(statusDimStyle.Render("    run: taskmirror credentials set " + account))
			}

			fmt.Printf("  Tasks:      %d total, %d in sync, %d pending\n",
				info.Pending.Total, info.Pending.Synced, info.Pending.Pending)

			quotaLine := fmt.Sprintf("  Quota:      %d/%d calls (%.1f%%), resets %s",
				info.Quota.Used, info.Quota.Limit, info.Quota.PercentUsed,
				info.Quota.ResetsAt.Format(time.RFC1123))
			if info.Quota.Remaining == 0 {
				fmt.Println(statusWarnStyle.Render(quotaLine))
			} else {
				fmt.Println(quotaLine)
			}

			if info.LastSyncAt.IsZero() {
				fmt.Println("  Last sync:  " + statusDimStyle.Render("never"))
			} else {
				fmt.Printf("  Last sync:  %s ago\n", time.Since(info.LastSyncAt).Round(time.Second))
			}

			if job, ok := app.engine.DuplicateSweepStatus(account); ok {
				fmt.Printf("  Cleanup:    %s (%s), deleted %d of %d\n",
					job.Status, job.Phase, job.Deleted, job.Total)
			}

			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&accountName, "account", "a", "", "account to inspect")
	return cmd
}
