package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/zettelwerk/internal/config"
	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
	"github.com/mkessler/zettelwerk/internal/core/usecase"
	"github.com/mkessler/zettelwerk/internal/core/fileutil"
	natsevents "github.com/mkessler/zettelwerk/internal/infrastructure/events/nats"
	"github.com/mkessler/zettelwerk/internal/infrastructure/extractor/ocr"
	"github.com/mkessler/zettelwerk/internal/infrastructure/llm/ollama"
	"github.com/mkessler/zettelwerk/internal/infrastructure/repository/postgres"
	"github.com/mkessler/zettelwerk/internal/infrastructure/resilience"
	"github.com/mkessler/zettelwerk/internal/infrastructure/storage/localfs"
	"github.com/mkessler/zettelwerk/internal/infrastructure/thumbnail"
	"github.com/mkessler/zettelwerk/internal/infrastructure/watcher"
	"github.com/mkessler/zettelwerk/internal/observability/logging"
	"github.com/mkessler/zettelwerk/internal/observability/metrics"
	"github.com/mkessler/zettelwerk/internal/worker"
)

const (
	ServiceAPI    = "api"
	ServiceWorker = "worker"
)

// App wires every adapter together. cmd/api and cmd/worker share the
// common persistence surface; Worker, Watcher and Metrics are populated
// for the worker process only.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Jobs    ports.JobRepository
	Docs    ports.DocumentRepository
	Scopes  ports.ScopeRepository
	Intake  ports.DocumentIntake
	Review  ports.ReviewResponder
	Worker  *worker.Worker
	Watcher *watcher.Watcher
	Metrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	jobs := postgres.NewJobRepository(db)
	docs := postgres.NewDocumentRepository(db)
	reviews := postgres.NewReviewRepository(db)
	scopes := postgres.NewScopeRepository(db)
	corrections := postgres.NewCorrectionRepository(db)
	search := postgres.NewSearchIndexer(db)

	if err := seedDefaultScope(ctx, scopes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed default scope: %w", err)
	}

	store, err := localfs.New(cfg.UploadDir, cfg.ArchiveDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init file storage: %w", err)
	}

	intake := usecase.NewIntakeService(jobs, store, cfg.AllowedFileTypes, cfg.MaxUploadBytes(), logger)
	review := usecase.NewReviewService(docs, reviews, scopes, corrections, logger)

	app := &App{
		Config: cfg,
		Logger: logger,
		Jobs:   jobs,
		Docs:   docs,
		Scopes: scopes,
		Intake: intake,
		Review: review,

		closeFn: func() { _ = db.Close() },
	}

	// The API process serves the thin REST surface only; the broker
	// connection, OCR/LLM adapters and watch/thumbnail directories belong
	// to the worker process alone.
	if !runsPipeline(service) {
		return app, nil
	}

	events, err := natsevents.New(cfg.NATSURL, cfg.NATSSubject, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.OllamaMaxRetries + 1,
	})
	llm := ollama.New(cfg.OllamaURL, cfg.OllamaModel,
		time.Duration(cfg.OllamaTimeoutSec)*time.Second, executor)

	extractor := ocr.New(cfg.OCRLanguages, cfg.MaxOCRPages, logger)
	thumbnails, err := thumbnail.New(cfg.ThumbnailDir, cfg.ThumbnailMaxSize, logger)
	if err != nil {
		events.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init thumbnail generator: %w", err)
	}

	analyzer := usecase.NewAnalyzer(llm, cfg.ConfidenceThreshold, logger)
	archiver := usecase.NewArchiver(docs, reviews, search, store, postgres.NewTxRunner(db), logger)

	app.Metrics = metrics.NewPipelineMetrics()
	app.Worker = worker.New(worker.Deps{
		Jobs:       jobs,
		Scopes:     scopes,
		Extractor:  extractor,
		Analyzer:   analyzer,
		Archiver:   archiver,
		Thumbnails: thumbnails,
		Events:     events,
		Metrics:    app.Metrics,

		PollInterval: time.Duration(cfg.QueuePollIntervalSec) * time.Second,
		MaxRetries:   cfg.MaxJobRetries,
		Logger:       logger,
	})

	app.Watcher, err = watcher.New(cfg.WatchDir, intake, logger)
	if err != nil {
		events.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init watch folder: %w", err)
	}

	app.closeFn = func() {
		events.Close()
		_ = db.Close()
	}
	return app, nil
}

// runsPipeline reports whether the named process hosts the queue worker
// and its collaborators.
func runsPipeline(service string) bool {
	return service == ServiceWorker
}

// seedDefaultScope guarantees scope matching always has a fallback target
// on a fresh database.
func seedDefaultScope(ctx context.Context, scopes ports.ScopeRepository) error {
	existing, err := scopes.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return scopes.Create(ctx, &domain.FilingScope{
		ID:        uuid.NewString(),
		Name:      "Privat",
		Slug:      fileutil.Slug("Privat"),
		Keywords:  []string{"privat"},
		IsDefault: true,
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
