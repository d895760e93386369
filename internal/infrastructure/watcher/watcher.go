package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

const (
	rejectedDirName = "rejected"
	// settleDelay gives scanners and network copies time to finish
	// writing before the file is picked up.
	settleDelay = 2 * time.Second
	// queueCapacity bounds the handoff between the fsnotify callback and
	// the single intake goroutine.
	queueCapacity = 64
)

// Watcher feeds files dropped into the watch folder to the intake service.
// Files that fail validation move to the rejected/ subfolder instead of
// being retried forever.
type Watcher struct {
	dir    string
	intake ports.DocumentIntake
	logger *slog.Logger

	settle time.Duration
}

func New(dir string, intake ports.DocumentIntake, logger *slog.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("watch folder not configured")
	}
	if err := os.MkdirAll(filepath.Join(dir, rejectedDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create rejected dir: %w", err)
	}
	return &Watcher{
		dir:    dir,
		intake: intake,
		logger: logger,
		settle: settleDelay,
	}, nil
}

// Run blocks until the context is cancelled. Pre-existing files are picked
// up once on startup so a restart never strands them.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	queue := make(chan string, queueCapacity)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for path := range queue {
			w.handleFile(ctx, path)
		}
	}()

	w.logger.Info("watch folder active", "dir", w.dir)
	w.scanExisting(queue)

	for {
		select {
		case <-ctx.Done():
			close(queue)
			<-done
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				close(queue)
				<-done
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.eligible(event.Name) {
				continue
			}
			select {
			case queue <- event.Name:
			default:
				w.logger.Warn("watch queue full, file skipped until restart", "path", event.Name)
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				close(queue)
				<-done
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) scanExisting(queue chan<- string) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial watch folder scan failed", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if !w.eligible(path) {
			continue
		}
		select {
		case queue <- path:
		default:
			w.logger.Warn("watch queue full during initial scan", "path", path)
		}
	}
}

// eligible filters out directories, hidden files and anything under the
// rejected/ subfolder.
func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == rejectedDirName {
			return false
		}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	if err := w.waitSettled(ctx, path); err != nil {
		w.logger.Warn("file never settled", "path", path, "error", err)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone already, nothing to do.
		return
	}

	_, err = w.intake.Submit(ctx, path, filepath.Base(path), info.Size(), domain.SourceWatchFolder)
	if err == nil {
		return
	}

	if domain.IsValidationError(err) {
		w.logger.Warn("watch folder file rejected", "path", path, "error", err)
	} else {
		w.logger.Error("watch folder intake failed", "path", path, "error", err)
	}
	w.reject(path)
}

// waitSettled waits until the file size is stable across the settle delay.
func (w *Watcher) waitSettled(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()

		timer := time.NewTimer(w.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *Watcher) reject(path string) {
	dest := filepath.Join(w.dir, rejectedDirName, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Error("moving file to rejected failed", "path", path, "error", err)
		return
	}
	w.logger.Info("file moved to rejected", "from", path, "to", dest)
}
