package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/scraper"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/infrastructure/transcript"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/usecase"
)

// Application wires configuration to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	db       *sql.DB
	ingestor *usecase.Ingestor
	worker   *usecase.DigestWorker
	notifier ports.Notifier
	driver   ports.Scheduler
	logger   *slog.Logger
}

// New validates fatal preconditions, connects the store, and builds the
// pipeline. Missing credentials surface here, before any run starts.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	store := storage.NewRepository(db, cfg.Database.Driver, baseLogger.With("component", "storage"))

	transcripts := transcript.NewFetcher(cfg.Transcripts, baseLogger.With("component", "transcripts"))
	extractor := scraper.NewExtractor(nil, baseLogger.With("component", "extractor"))

	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Videos:   scraper.NewYouTubeScraper(nil, transcripts, baseLogger.With("component", "scraper.youtube")),
		Articles: scraper.NewNewsScraper(nil, extractor, baseLogger.With("component", "scraper.news")),
		Store:    store,
		Channels: cfg.Ingest.Channels,
		Feeds:    toFeedSpecs(cfg.Ingest.Feeds),
		Logger:   baseLogger.With("component", "ingest"),
	})

	worker := usecase.NewDigestWorker(usecase.DigestDeps{
		Store:         store,
		Summarizer:    llm.NewGeminiClient(cfg.Gemini),
		Logger:        baseLogger.With("component", "digest"),
		Limit:         cfg.Digest.Limit,
		MaxInputChars: cfg.Digest.MaxInputChars,
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	return &Application{
		cfg:      cfg,
		db:       db,
		ingestor: ingestor,
		worker:   worker,
		notifier: notifier,
		driver:   scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		logger:   baseLogger.With("component", "app"),
	}, nil
}

// RunOnce executes one full pass: ingest, then the digest phase, then the
// optional run report.
func (a *Application) RunOnce(ctx context.Context, lookback time.Duration) error {
	result, err := a.ingestor.Run(ctx, lookback)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	digests, err := a.worker.Run(ctx)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	if a.notifier != nil {
		message := buildReport(result, digests)
		if err := a.notifier.PublishDigest(ctx, message); err != nil {
			a.logger.Warn("run report not delivered", "error", err)
		}
	}

	return nil
}

// Start schedules recurring runs with the configured lookback window.
func (a *Application) Start(ctx context.Context) error {
	lookback := a.cfg.Ingest.Lookback()
	return a.driver.Start(ctx, func(trigger time.Time) {
		a.logger.Info("scheduled run triggered", "at", trigger)
		if err := a.RunOnce(ctx, lookback); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	})
}

// Stop tears down the scheduler and closes the store.
func (a *Application) Stop(ctx context.Context) error {
	err := a.driver.Stop(ctx)
	if closeErr := a.db.Close(); err == nil {
		err = closeErr
	}
	return err
}

func validate(cfg config.Config) error {
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is not set")
	}

	switch cfg.Database.Driver {
	case storage.DriverPostgres, "":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database DSN is not set")
		}
	case storage.DriverSQLite:
		if cfg.Database.Path == "" {
			return fmt.Errorf("sqlite database path is not set")
		}
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if len(cfg.Ingest.Channels) == 0 && len(cfg.Ingest.Feeds) == 0 {
		return fmt.Errorf("no channels or feeds configured")
	}

	return nil
}

func toFeedSpecs(feeds []config.FeedConfig) []domain.FeedSpec {
	specs := make([]domain.FeedSpec, 0, len(feeds))
	for _, feed := range feeds {
		specs = append(specs, domain.FeedSpec{
			Name:            feed.Name,
			URL:             feed.URL,
			ContentSelector: feed.ContentSelector,
		})
	}
	return specs
}

func buildReport(result usecase.IngestResult, digests []domain.DigestRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %d new videos, %d new articles, %d digests\n",
		len(result.Videos), len(result.Articles), len(digests))

	for _, digest := range digests {
		fmt.Fprintf(&sb, "\n*%s*\n%s\n%s\n", digest.Title, digest.Summary, digest.URL)
	}

	return sb.String()
}
