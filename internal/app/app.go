package app

import (
	"context"
	"fmt"
	"log/slog"

	"heartofnews/internal/analyze"
	"heartofnews/internal/config"
	"heartofnews/internal/fetch"
	"heartofnews/internal/infrastructure/analyzer"
	"heartofnews/internal/infrastructure/redisq"
	"heartofnews/internal/infrastructure/storage"
	"heartofnews/internal/infrastructure/telegram"
	"heartofnews/internal/ingest"
	"heartofnews/internal/logging"
	"heartofnews/internal/ports"
	"heartofnews/internal/publish"
	"heartofnews/internal/scheduler"
)

// Application wires the storage, fetchers, stages, and scheduler together.
// Every collaborator is injected through constructors; nothing is looked
// up from ambient global state.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	cleanup   []func()
}

// stores groups the three storage ports behind one driver instance.
type stores struct {
	articles ports.ArticleStore
	sources  ports.SourceStore
	runs     ports.JobRunStore
}

// New builds a runnable application from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	st, err := a.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.sources.Import(ctx, cfg.DomainSources()); err != nil {
		return nil, fmt.Errorf("import sources: %w", err)
	}

	selector := fetch.NewSelector(
		fetch.NewFeedFetcher(nil, baseLogger.With("component", "fetch.feed")),
		fetch.NewPageFetcher(nil, baseLogger.With("component", "fetch.page")),
	)

	coordinator := ingest.New(ingest.Deps{
		Sources:        st.sources,
		Articles:       st.articles,
		Fetchers:       selector,
		Logger:         baseLogger.With("component", "ingest"),
		Workers:        cfg.Ingest.Workers,
		PerSourceLimit: cfg.Ingest.PerSourceLimit,
		DedupWindow:    cfg.Ingest.DedupWindow.Std(),
	})

	analysisStage := analyze.New(
		st.articles,
		analyzer.NewClient(cfg.Analysis.Endpoint, cfg.Analysis.APIKey),
		baseLogger.With("component", "analyze"),
		cfg.Analysis.BatchSize,
		cfg.Analysis.MaxAttempts,
	)

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	publishStage := publish.New(
		st.articles,
		st.sources,
		publisher,
		publish.NewPolicy(cfg.Publish.RejectThreshold),
		baseLogger.With("component", "publish"),
		cfg.Publish.BatchSize,
	)

	sched := scheduler.New(st.runs, baseLogger.With("component", "scheduler"))
	budget := cfg.Scheduler.JobBudget.Std()

	jobs := []struct {
		cfg scheduler.JobConfig
		fn  scheduler.JobFunc
	}{
		{scheduler.JobConfig{Name: "crawl", Every: cfg.Scheduler.CrawlEvery.Std(), Budget: budget}, coordinator.Run},
		{scheduler.JobConfig{Name: "analyze", Every: cfg.Scheduler.AnalyzeEvery.Std(), Budget: budget}, analysisStage.Run},
		{scheduler.JobConfig{Name: "publish", Every: cfg.Scheduler.PublishEvery.Std(), Budget: budget}, publishStage.Run},
	}
	for _, j := range jobs {
		if err := sched.Register(j.cfg, j.fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", j.cfg.Name, err)
		}
	}

	a.scheduler = sched
	return a, nil
}

// Run starts the scheduler and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.scheduler.Start()
	<-ctx.Done()

	a.logger.Info("shutting down")
	a.scheduler.Stop()
	for _, fn := range a.cleanup {
		fn()
	}
	return nil
}

// Scheduler exposes the trigger and history surface for operational use.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

func (a *Application) buildStores(ctx context.Context) (stores, error) {
	switch a.cfg.Storage.Driver {
	case "postgres":
		pg, err := storage.NewPostgres(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		a.cleanup = append(a.cleanup, pg.Close)
		return stores{articles: pg, sources: pg, runs: pg}, nil
	case "", "memory":
		mem := storage.NewMemory()
		return stores{articles: mem, sources: mem, runs: mem}, nil
	default:
		return stores{}, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

func (a *Application) buildPublisher(ctx context.Context) (ports.Publisher, error) {
	switch a.cfg.Publish.Channel {
	case "telegram":
		return telegram.NewPublisher(a.cfg.Publish.Telegram.BotToken, a.cfg.Publish.Telegram.ChatID), nil
	case "redis":
		pub, err := redisq.NewPublisher(ctx, a.cfg.Publish.Redis.URL, a.cfg.Publish.Redis.Queue)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cleanup = append(a.cleanup, func() { _ = pub.Close() })
		return pub, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown publish channel %q", a.cfg.Publish.Channel)
	}
}
