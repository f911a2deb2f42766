package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"CommunityInsights/internal/domain"
)

func TestSchedulerRegistersConfiguredWorkflows(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	var triggered []domain.WorkflowKind
	trigger := func(kind domain.WorkflowKind) error {
		triggered = append(triggered, kind)
		if kind == domain.WorkflowGenerate {
			return errors.New("busy")
		}
		return nil
	}

	s := NewScheduler(driver, trigger, Schedule{
		domain.WorkflowScrape:   "0 */6 * * *",
		domain.WorkflowGenerate: "30 9 * * *",
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !driver.started || len(driver.specs) != 2 || driver.specs[0] != "0 */6 * * *" {
		t.Fatalf("unexpected driver state %+v", driver)
	}

	for _, job := range driver.jobs {
		job()
	}
	if len(triggered) != 2 || triggered[0] != domain.WorkflowScrape || triggered[1] != domain.WorkflowGenerate {
		t.Fatalf("unexpected triggers %v", triggered)
	}

	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSchedulerWithoutSpecsDoesNotStart(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	s := NewScheduler(driver, func(domain.WorkflowKind) error { return nil }, Schedule{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if driver.started {
		t.Fatal("driver must stay idle without specs")
	}
}

func TestSchedulerPropagatesBadSpec(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{addErr: errors.New("expected 5 fields")}
	s := NewScheduler(driver, func(domain.WorkflowKind) error { return nil },
		Schedule{domain.WorkflowScrape: "every tuesday"}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for bad spec")
	}
}

func TestFormatReport(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	scrape := domain.RunReport{
		Kind:       domain.WorkflowScrape,
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Communities: []domain.CommunityReport{
			{Sheet: "ai-automation", Scraped: 20, Fresh: 4, Appended: 4},
			{Sheet: "growth-lab", Err: "community feed unavailable"},
		},
	}
	out := FormatReport(scrape)
	for _, want := range []string{"scrape run finished with errors in 1m35s", "- ai-automation: 20 scraped, 4 new, 4 appended", "(error: community feed unavailable)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	generate := domain.RunReport{
		Kind:        domain.WorkflowGenerate,
		StartedAt:   start,
		FinishedAt:  start.Add(time.Second),
		Communities: []domain.CommunityReport{{Sheet: "ai-automation", Candidates: 5, Generated: true, SelectedID: "id-1"}},
	}
	if out := FormatReport(generate); !strings.Contains(out, "generate run finished ok") || !strings.Contains(out, "drafted from id-1") {
		t.Fatalf("unexpected generate summary:\n%s", out)
	}
}
