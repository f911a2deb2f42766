package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// TriggerFunc starts a workflow in the background; an error means it was not started.
type TriggerFunc func(kind domain.WorkflowKind) error

// Schedule maps each workflow to a cron spec. Empty specs are skipped.
type Schedule map[domain.WorkflowKind]string

// Scheduler wires the cron driver with the workflow trigger.
type Scheduler struct {
	driver   ports.Scheduler
	trigger  TriggerFunc
	schedule Schedule
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, trigger TriggerFunc, schedule Schedule, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, trigger: trigger, schedule: schedule, logger: logger}
}

// Start registers every configured workflow with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.trigger == nil {
		return nil
	}

	registered := 0
	for _, kind := range []domain.WorkflowKind{domain.WorkflowScrape, domain.WorkflowGenerate} {
		spec := s.schedule[kind]
		if spec == "" {
			continue
		}
		if err := s.driver.Add(spec, s.job(kind)); err != nil {
			return fmt.Errorf("schedule %s %q: %w", kind, spec, err)
		}
		s.logger.Info("workflow scheduled", "kind", kind, "spec", spec)
		registered++
	}
	if registered == 0 {
		return nil
	}

	return s.driver.Start(ctx)
}

func (s *Scheduler) job(kind domain.WorkflowKind) func() {
	return func() {
		if err := s.trigger(kind); err != nil {
			s.logger.Warn("scheduled run skipped", "kind", kind, "error", err)
			return
		}
		s.logger.Info("scheduled run started", "kind", kind)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
