package storage

import (
	"context"
	"sync"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// MemoryRuns keeps the last N reports in process memory.
type MemoryRuns struct {
	mu      sync.Mutex
	reports []domain.RunReport
	next    int
	full    bool
}

var _ ports.RunRecorder = (*MemoryRuns)(nil)

// NewMemoryRuns returns a ring buffer holding up to size reports.
func NewMemoryRuns(size int) *MemoryRuns {
	if size <= 0 {
		size = 100
	}
	return &MemoryRuns{reports: make([]domain.RunReport, size)}
}

// Record stores report, evicting the oldest when full.
func (m *MemoryRuns) Record(_ context.Context, report domain.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports[m.next] = report
	m.next = (m.next + 1) % len(m.reports)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (m *MemoryRuns) Recent(_ context.Context, limit int) ([]domain.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	if m.full {
		count = len(m.reports)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]domain.RunReport, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.reports)) % len(m.reports)
		out = append(out, m.reports[idx])
	}
	return out, nil
}
