package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
	"github.com/mkessler/zettelwerk/internal/observability/metrics"
)

type stubJobRepo struct {
	job     *domain.Job
	history []domain.JobStatus
}

func (s *stubJobRepo) Create(context.Context, *domain.Job) error { return nil }

func (s *stubJobRepo) GetByID(_ context.Context, id string) (*domain.Job, error) {
	if s.job != nil && s.job.ID == id {
		cp := *s.job
		return &cp, nil
	}
	return nil, domain.ErrJobNotFound
}

func (s *stubJobRepo) NextPending(context.Context) (*domain.Job, error) {
	if s.job != nil && s.job.Status == domain.JobPending {
		cp := *s.job
		return &cp, nil
	}
	return nil, nil
}

func (s *stubJobRepo) Update(_ context.Context, job *domain.Job) error {
	cp := *job
	s.job = &cp
	s.history = append(s.history, job.Status)
	return nil
}

type stubScopeRepo struct{}

func (stubScopeRepo) List(context.Context) ([]domain.FilingScope, error) {
	return []domain.FilingScope{{ID: "s1", Name: "Privat", Slug: "privat", IsDefault: true}}, nil
}
func (stubScopeRepo) FindByName(context.Context, string) (*domain.FilingScope, error) {
	return nil, nil
}
func (stubScopeRepo) Create(context.Context, *domain.FilingScope) error { return nil }

type stubExtractor struct {
	result *domain.OcrResult
	err    error
}

func (s *stubExtractor) Extract(context.Context, string, string) (*domain.OcrResult, error) {
	return s.result, s.err
}

type stubAnalyzer struct {
	result *domain.AnalysisResult
}

func (s *stubAnalyzer) Analyze(context.Context, string) *domain.AnalysisResult {
	if s.result != nil {
		return s.result
	}
	return &domain.AnalysisResult{Mode: domain.AnalysisCombined, DocumentType: domain.TypeRechnung, Confidence: 0.9}
}

type stubArchiver struct {
	err   error
	doc   *domain.Document
	calls int
}

func (s *stubArchiver) Archive(context.Context, ports.ArchiveRequest) (*domain.Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.doc != nil {
		return s.doc, nil
	}
	return &domain.Document{ID: "doc-1", DocumentType: domain.TypeRechnung, ReviewStatus: domain.ReviewOK}, nil
}

type stubEvents struct {
	events []ports.PipelineEvent
}

func (s *stubEvents) PublishJobEvent(_ context.Context, e ports.PipelineEvent) error {
	s.events = append(s.events, e)
	return nil
}

func pendingJob() *domain.Job {
	return &domain.Job{
		ID:               "job-1",
		OriginalFilename: "rechnung.pdf",
		StoredFilename:   "abc_rechnung.pdf",
		FilePath:         "/uploads/abc_rechnung.pdf",
		FileType:         "pdf",
		Source:           domain.SourceUpload,
		Status:           domain.JobPending,
		CreatedAt:        time.Now().UTC().Add(-time.Second),
	}
}

func newTestWorker(jobs *stubJobRepo, archiver *stubArchiver, extractor ports.TextExtractor, events *stubEvents) *Worker {
	if extractor == nil {
		extractor = &stubExtractor{result: &domain.OcrResult{FullText: "text", AverageConfidence: 0.9}}
	}
	return New(Deps{
		Jobs:         jobs,
		Scopes:       stubScopeRepo{},
		Extractor:    extractor,
		Analyzer:     &stubAnalyzer{},
		Archiver:     archiver,
		Events:       events,
		Metrics:      metrics.NewPipelineMetrics(),
		PollInterval: time.Millisecond,
		MaxRetries:   3,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestProcessJobHappyPath(t *testing.T) {
	jobs := &stubJobRepo{}
	events := &stubEvents{}
	w := newTestWorker(jobs, &stubArchiver{}, nil, events)

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobCompleted {
		t.Fatalf("status = %q, want COMPLETED", job.Status)
	}
	// The claim must be committed before the terminal status.
	if len(jobs.history) < 2 || jobs.history[0] != domain.JobProcessing {
		t.Fatalf("update history = %v, want PROCESSING committed first", jobs.history)
	}
	if jobs.history[len(jobs.history)-1] != domain.JobCompleted {
		t.Fatalf("final committed status = %v", jobs.history[len(jobs.history)-1])
	}
	if job.OcrText != "text" {
		t.Errorf("ocr text not stored on job")
	}
	if job.AnalysisJSON == "" {
		t.Errorf("analysis not persisted on job")
	}
	if len(events.events) != 1 || events.events[0].DocumentID != "doc-1" {
		t.Errorf("events = %+v", events.events)
	}
}

func TestProcessJobLowConfidenceAnalysisParksNeedsReview(t *testing.T) {
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{
		doc: &domain.Document{ID: "doc-2", DocumentType: domain.TypeSonstiges, ReviewStatus: domain.ReviewNeeded},
	}
	w := newTestWorker(jobs, archiver, nil, &stubEvents{})

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobNeedsReview {
		t.Fatalf("status = %q, want NEEDS_REVIEW", job.Status)
	}
	if jobs.history[len(jobs.history)-1] != domain.JobNeedsReview {
		t.Fatalf("final committed status = %v", jobs.history[len(jobs.history)-1])
	}
	if job.RetryCount != 0 {
		t.Errorf("review outcome must not burn a retry, count = %d", job.RetryCount)
	}
}

func TestProcessJobDuplicateGoesToNeedsReview(t *testing.T) {
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{
		err: domain.WrapError(domain.ErrDuplicate, "archive document", fmt.Errorf("hash already present")),
	}
	w := newTestWorker(jobs, archiver, nil, &stubEvents{})

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobNeedsReview {
		t.Fatalf("status = %q, want NEEDS_REVIEW", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("duplicate must not burn a retry, count = %d", job.RetryCount)
	}
	if job.ErrorMessage == "" {
		t.Errorf("error message not recorded")
	}
}

func TestProcessJobTransientErrorRequeues(t *testing.T) {
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{err: fmt.Errorf("database briefly gone")}
	w := newTestWorker(jobs, archiver, nil, &stubEvents{})

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobPending {
		t.Fatalf("status = %q, want PENDING for retry", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", job.RetryCount)
	}
}

func TestProcessJobExhaustedRetriesFails(t *testing.T) {
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{err: fmt.Errorf("still broken")}
	w := newTestWorker(jobs, archiver, nil, &stubEvents{})

	job := pendingJob()
	job.RetryCount = 2
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobFailed {
		t.Fatalf("status = %q, want FAILED after final attempt", job.Status)
	}
	if job.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", job.RetryCount)
	}
}

func TestProcessJobExtractionErrorRetries(t *testing.T) {
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{}
	extractor := &stubExtractor{err: fmt.Errorf("tesseract crashed")}
	w := newTestWorker(jobs, archiver, extractor, &stubEvents{})

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobPending {
		t.Fatalf("status = %q, want PENDING", job.Status)
	}
	if archiver.calls != 0 {
		t.Errorf("archiver must not run when extraction errors")
	}
}

func TestProcessJobNoTextStillArchives(t *testing.T) {
	// (nil, nil) from the extractor means "nothing extractable", which is
	// a degraded but valid outcome, not an error.
	jobs := &stubJobRepo{}
	archiver := &stubArchiver{}
	extractor := &stubExtractor{}
	w := newTestWorker(jobs, archiver, extractor, &stubEvents{})

	job := pendingJob()
	w.ProcessJob(context.Background(), job)

	if job.Status != domain.JobCompleted {
		t.Fatalf("status = %q, want COMPLETED", job.Status)
	}
	if archiver.calls != 1 {
		t.Errorf("archiver calls = %d", archiver.calls)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	jobs := &stubJobRepo{}
	w := newTestWorker(jobs, &stubArchiver{}, nil, &stubEvents{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestRunIterationRecoversFromPanic(t *testing.T) {
	jobs := &stubJobRepo{job: pendingJob()}
	w := newTestWorker(jobs, &stubArchiver{}, &panickyExtractor{}, &stubEvents{})

	if processed := w.runIteration(context.Background()); processed {
		t.Fatalf("panicked iteration must report not processed")
	}
}

type panickyExtractor struct{}

func (panickyExtractor) Extract(context.Context, string, string) (*domain.OcrResult, error) {
	panic("boom")
}
