package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskmirror/internal/config"
	"taskmirror/internal/scheduler"
	"taskmirror/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run in daemon mode with scheduled operations",
		Long: `Run taskmirror as a long-lived process. The schedule section of the
config drives periodic completion pulls for every enabled account, and
finished background-job records are reaped automatically.

Example config:
  schedule:
    pull_completions: "*/15 * * * *"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			app, cleanup, err := newApp("")
			if err != nil {
				return err
			}
			defer cleanup()

			logger := utils.GetLogger()
			sched := scheduler.New(app.engine, cfg, logger)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			fmt.Println("taskmirror daemon running, press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("received %s, shutting down", sig)

			sched.Stop()
			app.engine.Shutdown(shutdownTimeout)
			return nil
		},
	}
}
