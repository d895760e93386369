package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, original_filename, stored_filename, file_path, file_type, file_size_bytes,
source, status, error_message, retry_count, ocr_text, ocr_confidence, analysis_json, created_at, updated_at`

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO processing_jobs (`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		job.ID, job.OriginalFilename, job.StoredFilename, job.FilePath, job.FileType, job.FileSizeBytes,
		string(job.Source), string(job.Status), job.ErrorMessage, job.RetryCount,
		job.OcrText, job.OcrConfidence, job.AnalysisJSON, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM processing_jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// NextPending returns the oldest pending job, or (nil, nil) when the queue
// is empty.
func (r *JobRepository) NextPending(ctx context.Context) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM processing_jobs
WHERE status = $1
ORDER BY created_at ASC
LIMIT 1
`, string(domain.JobPending))

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, error_message = $3, retry_count = $4, ocr_text = $5,
	ocr_confidence = $6, analysis_json = $7, updated_at = $8
WHERE id = $1
`,
		job.ID, string(job.Status), job.ErrorMessage, job.RetryCount,
		job.OcrText, job.OcrConfidence, job.AnalysisJSON, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update job", fmt.Errorf("id=%s", job.ID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var source, status string
	err := row.Scan(
		&job.ID, &job.OriginalFilename, &job.StoredFilename, &job.FilePath, &job.FileType, &job.FileSizeBytes,
		&source, &status, &job.ErrorMessage, &job.RetryCount,
		&job.OcrText, &job.OcrConfidence, &job.AnalysisJSON, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Source = domain.JobSource(source)
	job.Status = domain.JobStatus(status)
	return &job, nil
}
