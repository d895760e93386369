package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
	"github.com/mkessler/zettelwerk/internal/observability/metrics"
)

// Worker drains the job queue one job at a time. A single worker owns the
// whole queue; claim-then-commit keeps a crashed run visible as a stuck
// PROCESSING row instead of silently lost work.
type Worker struct {
	jobs       ports.JobRepository
	scopes     ports.ScopeRepository
	extractor  ports.TextExtractor
	analyzer   ports.DocumentAnalyzer
	archiver   ports.DocumentArchiver
	thumbnails ports.ThumbnailGenerator
	events     ports.EventPublisher
	metrics    *metrics.PipelineMetrics

	pollInterval time.Duration
	maxRetries   int
	logger       *slog.Logger
	now          func() time.Time
}

type Deps struct {
	Jobs       ports.JobRepository
	Scopes     ports.ScopeRepository
	Extractor  ports.TextExtractor
	Analyzer   ports.DocumentAnalyzer
	Archiver   ports.DocumentArchiver
	Thumbnails ports.ThumbnailGenerator
	Events     ports.EventPublisher
	Metrics    *metrics.PipelineMetrics

	PollInterval time.Duration
	MaxRetries   int
	Logger       *slog.Logger
}

func New(deps Deps) *Worker {
	if deps.PollInterval <= 0 {
		deps.PollInterval = 5 * time.Second
	}
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = 3
	}
	return &Worker{
		jobs:         deps.Jobs,
		scopes:       deps.Scopes,
		extractor:    deps.Extractor,
		analyzer:     deps.Analyzer,
		archiver:     deps.Archiver,
		thumbnails:   deps.Thumbnails,
		events:       deps.Events,
		metrics:      deps.Metrics,
		pollInterval: deps.PollInterval,
		maxRetries:   deps.MaxRetries,
		logger:       deps.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until the context is cancelled. Every iteration is its own
// fault boundary: a panic or error in one job never takes the loop down.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("queue worker started", "poll_interval", w.pollInterval.String())
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("queue worker stopping")
			return err
		}

		processed := w.runIteration(ctx)
		if processed {
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("queue worker stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runIteration claims and processes at most one job; the return value says
// whether a job was found.
func (w *Worker) runIteration(ctx context.Context) (processed bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in pipeline iteration",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			processed = false
		}
	}()

	job, err := w.jobs.NextPending(ctx)
	if err != nil {
		w.logger.Error("polling the queue failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	w.ProcessJob(ctx, job)
	return true
}

// ProcessJob runs the full pipeline for one claimed job and always leaves
// it in a committed state.
func (w *Worker) ProcessJob(ctx context.Context, job *domain.Job) {
	start := w.now()
	w.metrics.StartJob()
	w.metrics.ObserveQueueLag(start.Sub(job.CreatedAt))

	// Commit the claim before any expensive work so that a concurrent
	// reader never sees the job as still pending.
	job.Status = domain.JobProcessing
	job.UpdatedAt = start
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("claiming job failed", "job_id", job.ID, "error", err)
		w.metrics.FinishJob("claim_error", w.now().Sub(start))
		return
	}

	w.logger.Info("processing job",
		"job_id", job.ID,
		"filename", job.OriginalFilename,
		"attempt", job.RetryCount+1,
	)

	doc, err := w.runPipeline(ctx, job)
	if err != nil {
		w.failJob(ctx, job, err)
		w.metrics.FinishJob(string(job.Status), w.now().Sub(start))
		return
	}

	// Only a job this run still owns gets the terminal status. A document
	// archived with open review questions parks the job as NEEDS_REVIEW so
	// the ambiguity stays visible on the queue side too.
	if job.Status == domain.JobProcessing {
		if doc.ReviewStatus == domain.ReviewNeeded {
			job.Status = domain.JobNeedsReview
		} else {
			job.Status = domain.JobCompleted
		}
		job.ErrorMessage = ""
		job.UpdatedAt = w.now()
		if err := w.jobs.Update(ctx, job); err != nil {
			w.logger.Error("committing job outcome failed", "job_id", job.ID, "error", err)
		}
	}

	w.publishEvent(ctx, ports.PipelineEvent{
		JobID:      job.ID,
		DocumentID: doc.ID,
		Status:     string(job.Status),
	})
	w.metrics.FinishJob(string(job.Status), w.now().Sub(start))
	w.logger.Info("job completed",
		"job_id", job.ID,
		"document_id", doc.ID,
		"document_type", string(doc.DocumentType),
		"review_status", string(doc.ReviewStatus),
	)
}

func (w *Worker) runPipeline(ctx context.Context, job *domain.Job) (*domain.Document, error) {
	thumbnailPath := ""
	if w.thumbnails != nil {
		p, err := w.thumbnails.Generate(ctx, job.FilePath, job.FileType, job.ID)
		if err != nil {
			w.logger.Warn("thumbnail generation failed", "job_id", job.ID, "error", err)
		} else {
			thumbnailPath = p
		}
	}

	ocr, err := w.extractor.Extract(ctx, job.FilePath, job.FileType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	ocrText := ""
	if ocr != nil {
		ocrText = ocr.FullText
		job.OcrText = ocr.FullText
		job.OcrConfidence = ocr.AverageConfidence
	}

	analysis := w.analyzer.Analyze(ctx, ocrText)
	w.metrics.ObserveAnalysisMode(string(analysis.Mode))

	// Persist the intermediate results so a later failure keeps the
	// expensive OCR and model output.
	if raw, err := json.Marshal(analysis); err == nil {
		job.AnalysisJSON = string(raw)
	}
	job.UpdatedAt = w.now()
	if err := w.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}

	scopes, err := w.scopes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list filing scopes: %w", err)
	}

	doc, err := w.archiver.Archive(ctx, ports.ArchiveRequest{
		FilePath:         job.FilePath,
		OriginalFilename: job.OriginalFilename,
		StoredFilename:   job.StoredFilename,
		FileType:         job.FileType,
		FileSizeBytes:    job.FileSizeBytes,
		ThumbnailPath:    thumbnailPath,
		Ocr:              ocr,
		Analysis:         analysis,
		Scopes:           scopes,
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// failJob commits the failure outcome. Duplicates go straight to
// NEEDS_REVIEW without burning a retry; everything else is retried up to
// the bound and then parked as FAILED.
func (w *Worker) failJob(ctx context.Context, job *domain.Job, cause error) {
	if domain.IsKind(cause, domain.ErrDuplicate) {
		w.metrics.ObserveDuplicate()
		job.Status = domain.JobNeedsReview
		job.ErrorMessage = cause.Error()
		w.logger.Warn("duplicate document", "job_id", job.ID, "error", cause)
	} else {
		job.RetryCount++
		job.ErrorMessage = cause.Error()
		if job.RetryCount >= w.maxRetries {
			job.Status = domain.JobFailed
			w.logger.Error("job failed permanently",
				"job_id", job.ID,
				"retries", job.RetryCount,
				"error", cause,
			)
		} else {
			job.Status = domain.JobPending
			w.logger.Warn("job failed, requeued",
				"job_id", job.ID,
				"attempt", job.RetryCount,
				"max_retries", w.maxRetries,
				"error", cause,
			)
		}
	}

	job.UpdatedAt = w.now()
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("committing failed job state failed", "job_id", job.ID, "error", err)
	}

	w.publishEvent(ctx, ports.PipelineEvent{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: job.ErrorMessage,
	})
}

// publishEvent is best effort; event consumers are not part of the
// pipeline's correctness.
func (w *Worker) publishEvent(ctx context.Context, event ports.PipelineEvent) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishJobEvent(ctx, event); err != nil {
		w.logger.Warn("publishing pipeline event failed", "job_id", event.JobID, "error", err)
	}
}
