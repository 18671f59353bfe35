package scheduler

import (
	"testing"

	"taskmirror/engine"
	"taskmirror/internal/config"
)

func TestStart_RejectsInvalidCronSpec(t *testing.T) {
	cfg := &config.Config{
		Schedule: config.ScheduleConfig{PullCompletions: "not a cron spec"},
	}

	s := New(engine.New(nil, nil, engine.Config{}, nil), cfg, nil)
	if err := s.Start(); err == nil {
		t.Error("Start() accepted an invalid cron spec")
		s.Stop()
	}
}

func TestStartStop_WithoutSchedule(t *testing.T) {
	cfg := &config.Config{}

	// Only the job-cleanup entry is registered; start and stop must be clean.
	s := New(engine.New(nil, nil, engine.Config{}, nil), cfg, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}
