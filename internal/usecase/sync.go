package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// ErrLoginFailed aborts a scrape run before any community is visited.
var ErrLoginFailed = errors.New("community login failed")

const defaultRecentIDs = 1024

// SyncDeps wires the adapters used by the scrape workflow.
type SyncDeps struct {
	Crawlers    ports.CrawlerFactory
	Store       ports.SheetStore
	Enricher    ports.Enricher
	Limiter     ports.Limiter
	Communities []string
	PostLimit   int
	RecentIDs   int
	Logger      *slog.Logger
	Now         func() time.Time
}

// SyncPipeline scrapes each community, keeps only unseen posts, enriches
// them and appends the result to the community sheet.
type SyncPipeline struct {
	crawlers    ports.CrawlerFactory
	store       ports.SheetStore
	enricher    ports.Enricher
	limiter     ports.Limiter
	communities []string
	limit       int
	logger      *slog.Logger
	now         func() time.Time

	// recent holds ids appended by this process, keyed by sheet, so a store
	// read that lags behind a fresh append does not yield duplicates.
	recent *lru.Cache[string, struct{}]
}

// NewSyncPipeline constructs the scrape workflow.
func NewSyncPipeline(deps SyncDeps) (*SyncPipeline, error) {
	size := deps.RecentIDs
	if size <= 0 {
		size = defaultRecentIDs
	}
	recent, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create recent id cache: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &SyncPipeline{
		crawlers:    deps.Crawlers,
		store:       deps.Store,
		enricher:    deps.Enricher,
		limiter:     deps.Limiter,
		communities: deps.Communities,
		limit:       deps.PostLimit,
		logger:      logger,
		now:         now,
		recent:      recent,
	}, nil
}

// Run executes one scrape pass over every configured community in order.
// Only browser start-up and login failures fail the run as a whole.
func (p *SyncPipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{Kind: domain.WorkflowScrape, StartedAt: p.now()}

	crawler, err := p.crawlers(ctx)
	if err != nil {
		report.FinishedAt = p.now()
		return report, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := crawler.Close(); err != nil {
			p.logger.Warn("close browser", "error", err)
		}
	}()

	if !crawler.Authenticate(ctx) {
		report.FinishedAt = p.now()
		return report, ErrLoginFailed
	}

	for _, community := range p.communities {
		report.Communities = append(report.Communities, p.syncCommunity(ctx, crawler, community))
	}

	report.FinishedAt = p.now()
	return report, nil
}

func (p *SyncPipeline) syncCommunity(ctx context.Context, crawler ports.FeedCrawler, community string) domain.CommunityReport {
	sheet := domain.SheetName(community)
	rep := domain.CommunityReport{Community: community, Sheet: sheet}
	log := p.logger.With("community", community, "sheet", sheet)

	known := p.store.ExistingIDs(ctx, sheet)

	if err := crawler.OpenFeed(ctx, community); err != nil {
		log.Error("open feed", "error", err)
		rep.Err = err.Error()
		return rep
	}
	posts, err := crawler.Collect(ctx, p.limit)
	if err != nil {
		log.Error("collect posts", "error", err)
		rep.Err = err.Error()
		return rep
	}
	rep.Scraped = len(posts)

	fresh := p.freshPosts(sheet, known, posts)
	rep.Fresh = len(fresh)
	if len(fresh) == 0 {
		log.Info("no new posts", "scraped", len(posts))
		return rep
	}

	rows := make([]domain.PostRow, 0, len(fresh))
	for _, post := range fresh {
		insight := p.enrich(ctx, log, post)
		rows = append(rows, domain.NewPostRow(post, insight, p.now()))
	}

	appended, err := p.store.AppendPosts(ctx, sheet, rows)
	if err != nil {
		log.Error("append posts", "rows", len(rows), "error", err)
		rep.Err = err.Error()
		return rep
	}
	rep.Appended = appended
	for _, row := range rows {
		p.recent.Add(recentKey(sheet, row.ID), struct{}{})
	}

	log.Info("community synced", "scraped", len(posts), "fresh", len(fresh), "appended", appended)
	return rep
}

// freshPosts drops posts already stored or already seen earlier in this batch.
func (p *SyncPipeline) freshPosts(sheet string, known map[string]struct{}, posts []domain.CommunityPost) []domain.CommunityPost {
	batch := make(map[string]struct{}, len(posts))
	fresh := make([]domain.CommunityPost, 0, len(posts))
	for _, post := range posts {
		if _, ok := known[post.ID]; ok {
			continue
		}
		if p.recent.Contains(recentKey(sheet, post.ID)) {
			continue
		}
		if _, ok := batch[post.ID]; ok {
			continue
		}
		batch[post.ID] = struct{}{}
		fresh = append(fresh, post)
	}
	return fresh
}

// enrich never fails: any error yields the degraded insight so the post is still stored.
func (p *SyncPipeline) enrich(ctx context.Context, log *slog.Logger, post domain.CommunityPost) domain.Insight {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Warn("rate limiter wait", "post", post.ID, "error", err)
			return domain.DegradedInsight()
		}
	}

	insight, err := p.enricher.Summarize(ctx, post.Content)
	if err != nil {
		log.Warn("enrich post", "post", post.ID, "error", err)
		return domain.DegradedInsight()
	}
	return insight
}

func recentKey(sheet, id string) string {
	return sheet + "\x00" + id
}
