package domain

import "time"

type JobSource string

const (
	SourceUpload      JobSource = "UPLOAD"
	SourceWatchFolder JobSource = "WATCH_FOLDER"
)

type JobStatus string

const (
	JobPending     JobStatus = "PENDING"
	JobProcessing  JobStatus = "PROCESSING"
	JobCompleted   JobStatus = "COMPLETED"
	JobFailed      JobStatus = "FAILED"
	JobNeedsReview JobStatus = "NEEDS_REVIEW"
)

// Job tracks one file from intake to archival or failure. It is created
// PENDING by intake and owned exclusively by the queue worker afterwards.
type Job struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	FilePath         string    `json:"file_path"`
	FileType         string    `json:"file_type"`
	FileSizeBytes    int64     `json:"file_size_bytes"`
	Source           JobSource `json:"source"`
	Status           JobStatus `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	RetryCount       int       `json:"retry_count"`
	OcrText          string    `json:"-"`
	OcrConfidence    float64   `json:"ocr_confidence,omitempty"`
	AnalysisJSON     string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
