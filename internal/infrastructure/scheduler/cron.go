package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"CommunityInsights/internal/ports"
)

// Cron runs registered jobs on standard five-field cron specs.
type Cron struct {
	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	logger  *slog.Logger
}

var _ ports.Scheduler = (*Cron)(nil)

// NewCron builds a scheduler evaluating specs in loc.
func NewCron(loc *time.Location, logger *slog.Logger) *Cron {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cron{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger,
	}
}

// Add registers job under spec. Jobs added after Start are picked up too.
func (c *Cron) Add(spec string, job func()) error {
	if job == nil {
		return fmt.Errorf("nil job for %q", spec)
	}
	id, err := c.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	c.logger.Debug("cron entry added", "spec", spec, "entry", id)
	return nil
}

// Start begins running jobs in the background; ctx cancellation stops it.
func (c *Cron) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()

	if next := c.Next(); !next.IsZero() {
		c.logger.Info("cron started", "next", next)
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever comes first.
func (c *Cron) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the earliest upcoming activation, or zero when nothing is scheduled.
func (c *Cron) Next() time.Time {
	var next time.Time
	for _, e := range c.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}
