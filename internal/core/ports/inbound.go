package ports

import (
	"context"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

// DocumentIntake is the inbound contract for submitting a validated file to
// the processing queue.
type DocumentIntake interface {
	Submit(ctx context.Context, srcPath, originalName string, fileSize int64, source domain.JobSource) (*domain.Job, error)
}

// DocumentAnalyzer drives extracted text through the language model. It
// never fails for normal degradation; the worst outcome is a needs-review
// result explaining what went wrong.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, ocrText string) *domain.AnalysisResult
}

// ArchiveRequest carries everything the archiver needs for one document.
type ArchiveRequest struct {
	FilePath         string
	OriginalFilename string
	StoredFilename   string
	FileType         string
	FileSizeBytes    int64
	ThumbnailPath    string
	Ocr              *domain.OcrResult
	Analysis         *domain.AnalysisResult
	Scopes           []domain.FilingScope
}

// DocumentArchiver files a processed document exactly once.
type DocumentArchiver interface {
	Archive(ctx context.Context, req ArchiveRequest) (*domain.Document, error)
}

// ReviewResponder applies a human answer to a pending review question and
// feeds the correction learner.
type ReviewResponder interface {
	AnswerQuestion(ctx context.Context, questionID, answer string) (*domain.Document, error)
}
