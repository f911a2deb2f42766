package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"CommunityInsights/internal/config"
	"CommunityInsights/internal/control"
	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/infrastructure/browser"
	"CommunityInsights/internal/infrastructure/llm"
	"CommunityInsights/internal/infrastructure/notify"
	"CommunityInsights/internal/infrastructure/parser"
	"CommunityInsights/internal/infrastructure/scheduler"
	"CommunityInsights/internal/infrastructure/sheets"
	"CommunityInsights/internal/infrastructure/slack"
	"CommunityInsights/internal/infrastructure/storage"
	"CommunityInsights/internal/infrastructure/telegram"
	"CommunityInsights/internal/logging"
	"CommunityInsights/internal/ports"
	"CommunityInsights/internal/scanner"
	"CommunityInsights/internal/server"
	"CommunityInsights/internal/usecase"
	"CommunityInsights/pkg/logger"
)

const readHeaderTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	crawlers ports.CrawlerFactory
	runner   *control.Runner
	runs     ports.RunRecorder
	closers  []func()
}

// New builds every adapter and both workflows.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store := sheets.NewStore(
		sheets.NewClient(cfg.Store.Endpoint, cfg.Store.Timeout, baseLogger.With("component", "sheets")),
		baseLogger.With("component", "store"),
	)

	completer, err := newCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	assistant := llm.NewAssistant(completer, baseLogger.With("component", "llm", "provider", cfg.LLM.Provider))

	var limiter ports.Limiter
	if cfg.LLM.CallsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LLM.CallsPerSecond), 1)
	}

	a.crawlers = newCrawlerFactory(cfg, baseLogger.With("component", "crawler"))

	syncPipeline, err := usecase.NewSyncPipeline(usecase.SyncDeps{
		Crawlers:    a.crawlers,
		Store:       store,
		Enricher:    assistant,
		Limiter:     limiter,
		Communities: cfg.Community.URLs,
		PostLimit:   cfg.Community.PostLimit,
		RecentIDs:   cfg.Community.RecentCacheSize,
		Logger:      baseLogger.With("component", "sync"),
	})
	if err != nil {
		return nil, err
	}

	generator := usecase.NewGenerator(usecase.GeneratorDeps{
		Store:       store,
		Selector:    assistant,
		Drafter:     assistant,
		Communities: cfg.Community.URLs,
		Logger:      baseLogger.With("component", "generate"),
	})

	if err := a.initRuns(ctx); err != nil {
		return nil, err
	}

	a.runner = control.NewRunner(map[domain.WorkflowKind]control.Job{
		domain.WorkflowScrape:   syncPipeline.Run,
		domain.WorkflowGenerate: generator.Run,
	}, a.runs, a.notifier(), baseLogger.With("component", "runner"))

	return a, nil
}

// Serve exposes the HTTP control surface and cron jobs until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled() {
		cron := scheduler.NewCron(a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
		sched := usecase.NewScheduler(cron, a.runner.Trigger, usecase.Schedule{
			domain.WorkflowScrape:   a.cfg.Scheduler.ScrapeCron,
			domain.WorkflowGenerate: a.cfg.Scheduler.GenerateCron,
		}, a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				a.logger.Warn("stop scheduler", "error", err)
			}
		}()
	}

	httpLogger := a.logger.With("component", "http")
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           server.NewRouter(a.runner, a.runs, a.cfg.Server.APIKey, httpLogger),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          logger.Std(httpLogger, slog.LevelError),
	}

	a.logger.Info("server listening", "addr", srv.Addr, "communities", len(a.cfg.Community.URLs))
	if err := server.Serve(ctx, srv, a.cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("serve http: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// RunOnce executes a single workflow synchronously.
func (a *Application) RunOnce(ctx context.Context, kind domain.WorkflowKind) (domain.RunReport, error) {
	return a.runner.RunNow(ctx, kind)
}

// CheckLogin opens a browser, signs in and reports whether the session is authenticated.
func (a *Application) CheckLogin(ctx context.Context) (bool, error) {
	crawler, err := a.crawlers(ctx)
	if err != nil {
		return false, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := crawler.Close(); err != nil {
			a.logger.Warn("close browser", "error", err)
		}
	}()
	return crawler.Authenticate(ctx), nil
}

// Close releases long-lived resources.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *Application) initRuns(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.runs = storage.NewMemoryRuns(a.cfg.Database.HistorySize)
		return nil
	}
	repo, err := storage.NewRunRepository(ctx, a.cfg.Database.DSN, a.logger.With("component", "runs"))
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	a.runs = repo
	a.closers = append(a.closers, repo.Close)
	return nil
}

func (a *Application) notifier() ports.Notifier {
	var targets []notify.Named
	if tg := a.cfg.Notifications.Telegram; tg.Enabled() {
		targets = append(targets, notify.Named{Name: "telegram", Notifier: telegram.NewNotifier(tg)})
	}
	if sl := a.cfg.Notifications.Slack; sl.Enabled() {
		targets = append(targets, notify.Named{Name: "slack", Notifier: slack.NewNotifier(sl)})
	}
	multi := notify.NewMulti(targets...)
	if multi.Len() == 0 {
		return nil
	}
	return multi
}

func newCompleter(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case config.ProviderChatGPT:
		return llm.NewChatGPTClient(cfg.ChatGPT), nil
	case config.ProviderGemini, "":
		client, err := llm.NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// newCrawlerFactory opens one browser session per workflow run.
func newCrawlerFactory(cfg config.Config, log *slog.Logger) ports.CrawlerFactory {
	b := cfg.Browser
	return func(ctx context.Context) (ports.FeedCrawler, error) {
		session, err := browser.NewSession(ctx, browser.Options{
			Headless:          b.Headless,
			ExecPath:          b.ExecPath,
			UserAgent:         b.UserAgent,
			WindowWidth:       b.WindowWidth,
			WindowHeight:      b.WindowHeight,
			NavigationTimeout: b.NavigationTimeout,
		}, log.With("layer", "browser"))
		if err != nil {
			return nil, err
		}

		return scanner.New(session, parser.NewSkoolExtractor(session), scanner.Options{
			LoginURL: cfg.Community.LoginURL,
			Credentials: scanner.Credentials{
				Email:    cfg.Community.Email,
				Password: cfg.Community.Password,
			},
			FeedTimeout:    b.FeedTimeout,
			NetworkIdle:    b.NetworkIdle,
			IdleTimeout:    b.IdleTimeout,
			FallbackDelay:  b.FallbackDelay,
			SettleDelay:    b.SettleDelay,
			DiagnosticsDir: b.DiagnosticsDir,
		}, log), nil
	}
}
