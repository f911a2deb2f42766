package usecase

import (
	"context"
	"errors"
	"sync"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

type memStore struct {
	mu        sync.Mutex
	rows      map[string][]domain.PostRow
	generated map[string][]domain.GeneratedPostRow
	updates   []string
	appendErr error
	// lagging hides stored ids from ExistingIDs, like a store read that trails a write.
	lagging bool
}

var _ ports.SheetStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		rows:      make(map[string][]domain.PostRow),
		generated: make(map[string][]domain.GeneratedPostRow),
	}
}

func (m *memStore) ExistingIDs(_ context.Context, sheet string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]struct{})
	if m.lagging {
		return ids
	}
	for _, r := range m.rows[sheet] {
		ids[r.ID] = struct{}{}
	}
	return ids
}

func (m *memStore) PostRows(_ context.Context, sheet string) []domain.PostRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PostRow(nil), m.rows[sheet]...)
}

func (m *memStore) AppendPosts(_ context.Context, sheet string, rows []domain.PostRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.rows[sheet] = append(m.rows[sheet], rows...)
	return len(rows), nil
}

func (m *memStore) AppendGenerated(_ context.Context, sheet string, rows []domain.GeneratedPostRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.generated[sheet] = append(m.generated[sheet], rows...)
	return len(rows), nil
}

func (m *memStore) UpdateStatus(_ context.Context, sheet, postID string, status domain.Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows[sheet] {
		if r.ID == postID {
			m.rows[sheet][i].Status = status
			m.updates = append(m.updates, postID)
			return true
		}
	}
	return false
}

func (m *memStore) statusCount(sheet string, status domain.Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows[sheet] {
		if r.Status == status {
			n++
		}
	}
	return n
}

type fakeCrawler struct {
	feeds    map[string][]domain.CommunityPost
	openErr  map[string]error
	loginOK  bool
	opened   []string
	current  string
	closed   int
	limitArg int
}

func (f *fakeCrawler) Authenticate(context.Context) bool { return f.loginOK }

func (f *fakeCrawler) OpenFeed(_ context.Context, url string) error {
	f.opened = append(f.opened, url)
	if err := f.openErr[url]; err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *fakeCrawler) Collect(_ context.Context, limit int) ([]domain.CommunityPost, error) {
	f.limitArg = limit
	posts := f.feeds[f.current]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (f *fakeCrawler) Close() error {
	f.closed++
	return nil
}

func (f *fakeCrawler) factory() ports.CrawlerFactory {
	return func(context.Context) (ports.FeedCrawler, error) { return f, nil }
}

type fakeEnricher struct {
	failOn map[string]bool
	calls  int
}

func (f *fakeEnricher) Summarize(_ context.Context, text string) (domain.Insight, error) {
	f.calls++
	if f.failOn[text] {
		return domain.Insight{}, errors.New("model overloaded")
	}
	return domain.Insight{Problem: "problem: " + text, Category: "Tech", Tags: []string{"a"}}, nil
}

type countingLimiter struct{ waits int }

func (c *countingLimiter) Wait(context.Context) error {
	c.waits++
	return nil
}

type fakeSelector struct {
	pick  string
	err   error
	calls int
	seen  []domain.Candidate
}

func (f *fakeSelector) SelectOne(_ context.Context, candidates []domain.Candidate) (string, error) {
	f.calls++
	f.seen = candidates
	return f.pick, f.err
}

type fakeDrafter struct {
	text string
	err  error
}

func (f *fakeDrafter) Draft(context.Context, domain.PostRow) (string, error) {
	return f.text, f.err
}

type fakeDriver struct {
	specs   []string
	jobs    []func()
	started bool
	stopped bool
	addErr  error
}

func (f *fakeDriver) Add(spec string, job func()) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.specs = append(f.specs, spec)
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeDriver) Start(context.Context) error {
	f.started = true
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.stopped = true
	return nil
}
