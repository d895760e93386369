package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Store keeps files in two trees: a flat working directory for files that
// are queued or in flight, and the nested archive tree for filed documents.
type Store struct {
	uploadDir  string
	archiveDir string
}

func New(uploadDir, archiveDir string) (*Store, error) {
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	if archiveDir == "" {
		archiveDir = "./data/archive"
	}
	for _, dir := range []string{uploadDir, archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, archiveDir: archiveDir}, nil
}

func (s *Store) StoreCopy(_ context.Context, srcPath, storedName string) (string, error) {
	dest := filepath.Join(s.uploadDir, storedName)
	if err := copyFile(srcPath, dest); err != nil {
		return "", fmt.Errorf("copy into working storage: %w", err)
	}
	return dest, nil
}

func (s *Store) StoreMove(_ context.Context, srcPath, storedName string) (string, error) {
	dest := filepath.Join(s.uploadDir, storedName)
	if err := moveFile(srcPath, dest); err != nil {
		return "", fmt.Errorf("move into working storage: %w", err)
	}
	return dest, nil
}

func (s *Store) MoveToArchive(_ context.Context, srcPath, relArchivePath string) (string, error) {
	dest := filepath.Join(s.archiveDir, filepath.FromSlash(relArchivePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	if err := moveFile(srcPath, dest); err != nil {
		return "", fmt.Errorf("move into archive: %w", err)
	}
	return dest, nil
}

// moveFile renames when possible and falls back to copy+remove when source
// and destination live on different filesystems.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return os.Remove(src)
	}
	return err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
