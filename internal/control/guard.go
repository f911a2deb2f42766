package control

import (
	"errors"
	"sync"

	"CommunityInsights/internal/domain"
)

var (
	// ErrAlreadyRunning is returned when a workflow of the same kind is in flight.
	ErrAlreadyRunning = errors.New("workflow already running")
	// ErrScrapeInProgress refuses generation while a scrape is running.
	ErrScrapeInProgress = errors.New("scrape in progress")
)

// State is the lifecycle of one workflow kind.
type State int

const (
	Idle State = iota
	Running
)

// Snapshot is a point-in-time view of the guard.
type Snapshot struct {
	Scraping   bool `json:"scrapingInProgress"`
	Generating bool `json:"generationInProgress"`
}

// Guard enforces one run per kind and no generation during a scrape.
type Guard struct {
	mu     sync.Mutex
	states map[domain.WorkflowKind]State
}

// NewGuard returns a guard with every workflow idle.
func NewGuard() *Guard {
	return &Guard{states: make(map[domain.WorkflowKind]State)}
}

// TryStart marks kind as running or reports why it cannot start.
func (g *Guard) TryStart(kind domain.WorkflowKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.states[kind] == Running {
		return ErrAlreadyRunning
	}
	if kind == domain.WorkflowGenerate && g.states[domain.WorkflowScrape] == Running {
		return ErrScrapeInProgress
	}
	g.states[kind] = Running
	return nil
}

// Finish returns kind to idle.
func (g *Guard) Finish(kind domain.WorkflowKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[kind] = Idle
}

// Snapshot reports which workflows are running.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Scraping:   g.states[domain.WorkflowScrape] == Running,
		Generating: g.states[domain.WorkflowGenerate] == Running,
	}
}
