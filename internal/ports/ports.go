package ports

import (
	"context"

	"CommunityInsights/internal/domain"
)

// FeedCrawler drives an authenticated browser session over community feeds.
type FeedCrawler interface {
	Authenticate(ctx context.Context) bool
	OpenFeed(ctx context.Context, communityURL string) error
	Collect(ctx context.Context, limit int) ([]domain.CommunityPost, error)
	Close() error
}

// CrawlerFactory opens a fresh browser-backed crawler for one workflow run.
type CrawlerFactory func(ctx context.Context) (FeedCrawler, error)

// SheetStore is the typed view of the remote tabular store.
type SheetStore interface {
	ExistingIDs(ctx context.Context, sheet string) map[string]struct{}
	PostRows(ctx context.Context, sheet string) []domain.PostRow
	AppendPosts(ctx context.Context, sheet string, rows []domain.PostRow) (int, error)
	AppendGenerated(ctx context.Context, sheet string, rows []domain.GeneratedPostRow) (int, error)
	UpdateStatus(ctx context.Context, sheet, postID string, status domain.Status) bool
}

// Enricher extracts structured insight from raw post text.
type Enricher interface {
	Summarize(ctx context.Context, text string) (domain.Insight, error)
}

// CandidateSelector picks the post best suited for a draft; "" means none.
type CandidateSelector interface {
	SelectOne(ctx context.Context, candidates []domain.Candidate) (string, error)
}

// Drafter writes a new community post from a stored row; "" means nothing usable.
type Drafter interface {
	Draft(ctx context.Context, source domain.PostRow) (string, error)
}

// Limiter paces calls to rate-limited external services.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RunRecorder persists workflow reports.
type RunRecorder interface {
	Record(ctx context.Context, report domain.RunReport) error
	Recent(ctx context.Context, limit int) ([]domain.RunReport, error)
}

// Notifier streams run summaries to Telegram, Slack or other channels.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Scheduler controls when workflows are triggered.
type Scheduler interface {
	Add(spec string, job func()) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
