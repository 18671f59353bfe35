// Package scheduler runs the engine's periodic operations in daemon mode:
// the scheduled completion pull and the background-job record cleanup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"taskmirror/engine"
	"taskmirror/internal/config"
	"taskmirror/internal/utils"
)

// jobCleanupSpec reaps expired background-job records every minute
const jobCleanupSpec = "* * * * *"

// Scheduler drives cron-triggered engine operations
type Scheduler struct {
	engine *engine.Engine
	cfg    *config.Config
	logger *utils.Logger
	cron   *cron.Cron
}

// New creates a scheduler over the engine
func New(eng *engine.Engine, cfg *config.Config, logger *utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Scheduler{
		engine: eng,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the cron entries and starts the scheduler
func (s *Scheduler) Start() error {
	if spec := s.cfg.Schedule.PullCompletions; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.pullAllAccounts); err != nil {
			return fmt.Errorf("invalid pull_completions schedule %q: %w", spec, err)
		}
		s.logger.Info("scheduled completion pull: %s", spec)
	}

	if _, err := s.cron.AddFunc(jobCleanupSpec, func() {
		if reaped := s.engine.Jobs().Cleanup(); reaped > 0 {
			s.logger.Debug("reaped %d expired job records", reaped)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule job cleanup: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running entries to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduler entries did not finish within 30s")
	}
}

// pullAllAccounts runs a completion pull for every enabled account.
// Failures are logged and skipped; the next tick retries.
func (s *Scheduler) pullAllAccounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for name, account := range s.cfg.Accounts {
		if !account.Enabled {
			continue
		}
		if err := s.engine.CheckConnectivity(ctx, name); err != nil {
			s.logger.Info("skipping scheduled pull for %s, remote unreachable: %v", name, err)
			continue
		}
		result, err := s.engine.PullCompletions(ctx, name)
		if err != nil {
			s.logger.Warn("scheduled completion pull failed for %s: %v", name, err)
			continue
		}
		if result.Updated > 0 {
			s.logger.Info("scheduled pull for %s marked %d tasks completed", name, result.Updated)
		}
	}
}
