package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
	"CommunityInsights/internal/usecase"
)

// Job executes one workflow invocation.
type Job func(ctx context.Context) (domain.RunReport, error)

const reportTimeout = 15 * time.Second

// Runner starts workflows under the guard and publishes their reports.
type Runner struct {
	guard    *Guard
	jobs     map[domain.WorkflowKind]Job
	recorder ports.RunRecorder
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewRunner wires workflow jobs with optional recorder and notifier.
func NewRunner(jobs map[domain.WorkflowKind]Job, recorder ports.RunRecorder, notifier ports.Notifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		guard:    NewGuard(),
		jobs:     jobs,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Status reports which workflows are running.
func (r *Runner) Status() Snapshot {
	return r.guard.Snapshot()
}

// Trigger starts kind in the background. The run is detached from any caller
// context and always completes.
func (r *Runner) Trigger(kind domain.WorkflowKind) error {
	job, ok := r.jobs[kind]
	if !ok {
		return fmt.Errorf("unknown workflow %q", kind)
	}
	if err := r.guard.TryStart(kind); err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(context.Background(), kind, job)
	}()
	return nil
}

// RunNow executes kind synchronously through the same guard.
func (r *Runner) RunNow(ctx context.Context, kind domain.WorkflowKind) (domain.RunReport, error) {
	job, ok := r.jobs[kind]
	if !ok {
		return domain.RunReport{}, fmt.Errorf("unknown workflow %q", kind)
	}
	if err := r.guard.TryStart(kind); err != nil {
		return domain.RunReport{}, err
	}

	report := r.execute(ctx, kind, job)
	if report.Err != "" {
		return report, fmt.Errorf("%s run: %s", kind, report.Err)
	}
	return report, nil
}

// Wait blocks until every background run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, kind domain.WorkflowKind, job Job) (report domain.RunReport) {
	id := uuid.NewString()
	log := r.logger.With("run", id, "kind", kind)
	started := r.now()

	defer r.guard.Finish(kind)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("workflow panicked", "panic", rec)
			report.Err = fmt.Sprintf("panic: %v", rec)
		}
		report.ID = id
		report.Kind = kind
		if report.StartedAt.IsZero() {
			report.StartedAt = started
		}
		if report.FinishedAt.IsZero() {
			report.FinishedAt = r.now()
		}
		r.publish(log, report)
	}()

	log.Info("workflow started")
	report, err := job(ctx)
	if err != nil {
		log.Error("workflow failed", "error", err)
		report.Err = err.Error()
		return report
	}
	log.Info("workflow finished", "communities", len(report.Communities), "failed", report.Failed())
	return report
}

// publish never fails the run; recorder and notifier errors are only logged.
func (r *Runner) publish(log *slog.Logger, report domain.RunReport) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, report); err != nil {
			log.Warn("record run", "error", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, usecase.FormatReport(report)); err != nil {
			log.Warn("notify run", "error", err)
		}
	}
}
