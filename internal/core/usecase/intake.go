package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/fileutil"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

// IntakeService validates a submitted file, places it into working storage
// and enqueues a PENDING job. No analysis happens here.
type IntakeService struct {
	jobs     ports.JobRepository
	store    ports.FileStore
	allowed  []string
	maxBytes int64
	logger   *slog.Logger
}

func NewIntakeService(
	jobs ports.JobRepository,
	store ports.FileStore,
	allowedFileTypes []string,
	maxUploadBytes int64,
	logger *slog.Logger,
) *IntakeService {
	return &IntakeService{
		jobs:     jobs,
		store:    store,
		allowed:  allowedFileTypes,
		maxBytes: maxUploadBytes,
		logger:   logger,
	}
}

func (s *IntakeService) Submit(
	ctx context.Context,
	srcPath, originalName string,
	fileSize int64,
	source domain.JobSource,
) (*domain.Job, error) {
	if err := fileutil.Validate(srcPath, originalName, fileSize, s.allowed, s.maxBytes); err != nil {
		return nil, err
	}

	storedName := fileutil.StoredFilename(originalName)

	// The watch folder owns its files, so they are moved; interactive
	// uploads are copied because the caller may still need the temp file.
	var destPath string
	var err error
	if source == domain.SourceWatchFolder {
		destPath, err = s.store.StoreMove(ctx, srcPath, storedName)
	} else {
		destPath, err = s.store.StoreCopy(ctx, srcPath, storedName)
	}
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:               uuid.NewString(),
		OriginalFilename: originalName,
		StoredFilename:   storedName,
		FilePath:         destPath,
		FileType:         fileutil.Extension(originalName),
		FileSizeBytes:    fileSize,
		Source:           source,
		Status:           domain.JobPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("document submitted",
		"job_id", job.ID,
		"original_filename", originalName,
		"stored_filename", storedName,
		"source", string(source),
	)
	return job, nil
}
