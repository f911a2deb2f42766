package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"CommunityInsights/internal/domain"
)

func TestGuardExclusion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		running []domain.WorkflowKind
		start   domain.WorkflowKind
		want    error
	}{
		{name: "idle scrape", start: domain.WorkflowScrape},
		{name: "idle generate", start: domain.WorkflowGenerate},
		{name: "second scrape", running: []domain.WorkflowKind{domain.WorkflowScrape}, start: domain.WorkflowScrape, want: ErrAlreadyRunning},
		{name: "second generate", running: []domain.WorkflowKind{domain.WorkflowGenerate}, start: domain.WorkflowGenerate, want: ErrAlreadyRunning},
		{name: "generate during scrape", running: []domain.WorkflowKind{domain.WorkflowScrape}, start: domain.WorkflowGenerate, want: ErrScrapeInProgress},
		{name: "scrape during generate", running: []domain.WorkflowKind{domain.WorkflowGenerate}, start: domain.WorkflowScrape},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := NewGuard()
			for _, k := range tc.running {
				if err := g.TryStart(k); err != nil {
					t.Fatalf("setup %s: %v", k, err)
				}
			}
			if err := g.TryStart(tc.start); !errors.Is(err, tc.want) {
				t.Fatalf("TryStart(%s) = %v, want %v", tc.start, err, tc.want)
			}
		})
	}
}

func TestGuardFinishReleases(t *testing.T) {
	t.Parallel()

	g := NewGuard()
	if err := g.TryStart(domain.WorkflowScrape); err != nil {
		t.Fatalf("TryStart: %v", err)
	}
	if s := g.Snapshot(); !s.Scraping || s.Generating {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	g.Finish(domain.WorkflowScrape)
	if err := g.TryStart(domain.WorkflowGenerate); err != nil {
		t.Fatalf("generate after scrape finished: %v", err)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	reports []domain.RunReport
}

func (m *memRecorder) Record(_ context.Context, r domain.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memRecorder) Recent(context.Context, int) ([]domain.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RunReport(nil), m.reports...), nil
}

type memNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (m *memNotifier) Notify(_ context.Context, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func TestRunnerTriggerRejectsWhileRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	recorder := &memRecorder{}
	notifier := &memNotifier{err: errors.New("chat unreachable")}

	runner := NewRunner(map[domain.WorkflowKind]Job{
		domain.WorkflowScrape: func(context.Context) (domain.RunReport, error) {
			close(started)
			<-release
			return domain.RunReport{Communities: []domain.CommunityReport{{Sheet: "ai-automation", Appended: 2}}}, nil
		},
		domain.WorkflowGenerate: func(context.Context) (domain.RunReport, error) {
			return domain.RunReport{}, nil
		},
	}, recorder, notifier, nil)

	if err := runner.Trigger(domain.WorkflowScrape); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	<-started

	if err := runner.Trigger(domain.WorkflowScrape); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := runner.Trigger(domain.WorkflowGenerate); !errors.Is(err, ErrScrapeInProgress) {
		t.Fatalf("expected ErrScrapeInProgress, got %v", err)
	}
	if !runner.Status().Scraping {
		t.Fatal("status must show the running scrape")
	}

	close(release)
	runner.Wait()

	if runner.Status().Scraping {
		t.Fatal("guard must be released after the run")
	}
	if len(recorder.reports) != 1 {
		t.Fatalf("expected one recorded report, got %d", len(recorder.reports))
	}
	rep := recorder.reports[0]
	if rep.ID == "" || rep.Kind != domain.WorkflowScrape || rep.StartedAt.IsZero() || rep.FinishedAt.IsZero() {
		t.Fatalf("report metadata not filled: %+v", rep)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "ai-automation") {
		t.Fatalf("unexpected notifications %v", notifier.messages)
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	t.Parallel()

	recorder := &memRecorder{}
	runner := NewRunner(map[domain.WorkflowKind]Job{
		domain.WorkflowGenerate: func(context.Context) (domain.RunReport, error) {
			panic("nil selector")
		},
	}, recorder, nil, nil)

	if err := runner.Trigger(domain.WorkflowGenerate); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	runner.Wait()

	if len(recorder.reports) != 1 || !strings.Contains(recorder.reports[0].Err, "nil selector") {
		t.Fatalf("panic must be recorded, got %+v", recorder.reports)
	}
	if err := runner.Trigger(domain.WorkflowGenerate); err != nil {
		t.Fatalf("guard must be released after a panic: %v", err)
	}
	runner.Wait()
}

func TestRunnerRunNow(t *testing.T) {
	t.Parallel()

	runner := NewRunner(map[domain.WorkflowKind]Job{
		domain.WorkflowScrape: func(context.Context) (domain.RunReport, error) {
			return domain.RunReport{}, errors.New("community login failed")
		},
		domain.WorkflowGenerate: func(context.Context) (domain.RunReport, error) {
			return domain.RunReport{Communities: []domain.CommunityReport{{Sheet: "s", Generated: true}}}, nil
		},
	}, nil, nil, nil)

	if _, err := runner.RunNow(context.Background(), domain.WorkflowScrape); err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("expected login failure, got %v", err)
	}
	report, err := runner.RunNow(context.Background(), domain.WorkflowGenerate)
	if err != nil {
		t.Fatalf("RunNow generate: %v", err)
	}
	if report.Kind != domain.WorkflowGenerate || !report.Communities[0].Generated {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := runner.RunNow(context.Background(), "publish"); err == nil {
		t.Fatal("unknown workflow must fail")
	}
}
