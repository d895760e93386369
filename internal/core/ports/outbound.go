package ports

import (
	"context"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

// JobRepository persists processing-queue state. NextPending returns
// (nil, nil) when the queue is empty.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	NextPending(ctx context.Context) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// DocumentRepository persists the archived document aggregate.
// FindByHash returns (nil, nil) when no document carries the hash; the
// unique constraint on file_hash is the authoritative dedup guard.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	FindByHash(ctx context.Context, hash string) (*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error)
	LinkTag(ctx context.Context, documentID string, tagID int64) error
	CreateWarranty(ctx context.Context, w *domain.WarrantyInfo) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// ReviewRepository persists pending disambiguation questions.
type ReviewRepository interface {
	CreateQuestion(ctx context.Context, q *domain.ReviewQuestion) error
	GetQuestion(ctx context.Context, id string) (*domain.ReviewQuestion, error)
	MarkAnswered(ctx context.Context, id, answer string) error
	CountOpen(ctx context.Context, documentID string) (int, error)
}

// ScopeRepository reads and creates filing scopes. List must return scopes
// in a stable order so keyword tie-breaks stay deterministic.
type ScopeRepository interface {
	List(ctx context.Context) ([]domain.FilingScope, error)
	FindByName(ctx context.Context, name string) (*domain.FilingScope, error)
	Create(ctx context.Context, scope *domain.FilingScope) error
}

// CorrectionRepository persists learned correction mappings.
type CorrectionRepository interface {
	Find(ctx context.Context, field, original, corrected string) (*domain.CorrectionMapping, error)
	Create(ctx context.Context, m *domain.CorrectionMapping) error
	Update(ctx context.Context, m *domain.CorrectionMapping) error
}

// TxRunner scopes fn to a single database transaction. Repositories pick
// the transaction up from the context, so every write inside fn commits
// or rolls back as one unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SearchIndexer maintains the derived full-text index. Upsert semantics;
// callers treat failures as non-fatal.
type SearchIndexer interface {
	Index(ctx context.Context, docID, title, ocrText, issuer, summary, tags string) error
}

// FileStore moves validated files through working storage and into the
// archive tree.
type FileStore interface {
	StoreCopy(ctx context.Context, srcPath, storedName string) (string, error)
	StoreMove(ctx context.Context, srcPath, storedName string) (string, error)
	MoveToArchive(ctx context.Context, srcPath, relArchivePath string) (string, error)
}

// TextExtractor produces plain text + confidence from a stored file.
// It returns (nil, nil) when it cannot extract anything.
type TextExtractor interface {
	Extract(ctx context.Context, path, fileType string) (*domain.OcrResult, error)
}

// LLMClient sends one prompt to the local model and returns the raw
// response text. Transient connectivity failures are retried internally;
// an empty response after exhaustion is reported as an error.
type LLMClient interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// ThumbnailGenerator renders a preview image; failure is non-fatal.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, path, fileType, jobID string) (string, error)
}

// EventPublisher fans pipeline lifecycle events out to interested
// consumers, best effort.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event PipelineEvent) error
}

// PipelineEvent describes one job/document lifecycle transition.
type PipelineEvent struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}
