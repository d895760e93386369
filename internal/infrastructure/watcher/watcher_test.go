package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type recordingIntake struct {
	mu        sync.Mutex
	submitted []string
	err       error
}

func (r *recordingIntake) Submit(_ context.Context, srcPath, _ string, _ int64, source domain.JobSource) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source != domain.SourceWatchFolder {
		return nil, fmt.Errorf("unexpected source %s", source)
	}
	if r.err != nil {
		return nil, r.err
	}
	r.submitted = append(r.submitted, srcPath)
	return &domain.Job{ID: "job"}, nil
}

func (r *recordingIntake) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submitted)
}

func newTestWatcher(t *testing.T, intake *recordingIntake) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := New(dir, intake, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	w.settle = 10 * time.Millisecond
	return w, dir
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherPicksUpNewFile(t *testing.T) {
	intake := &recordingIntake{}
	w, dir := newTestWatcher(t, intake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool { return intake.count() == 1 })
}

func TestWatcherPicksUpPreexistingFiles(t *testing.T) {
	intake := &recordingIntake{}
	w, dir := newTestWatcher(t, intake)

	if err := os.WriteFile(filepath.Join(dir, "old.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, 3*time.Second, func() bool { return intake.count() == 1 })
}

func TestWatcherMovesRejectedFiles(t *testing.T) {
	intake := &recordingIntake{err: &domain.ValidationError{Filename: "bad.exe", Message: "type not allowed"}}
	w, dir := newTestWatcher(t, intake)

	if err := os.WriteFile(filepath.Join(dir, "bad.exe"), []byte("MZ"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	rejected := filepath.Join(dir, "rejected", "bad.exe")
	waitFor(t, 3*time.Second, func() bool {
		_, err := os.Stat(rejected)
		return err == nil
	})
}

func TestWatcherIgnoresRejectedDir(t *testing.T) {
	w, dir := newTestWatcher(t, &recordingIntake{})

	fresh := filepath.Join(dir, "fresh.pdf")
	if err := os.WriteFile(fresh, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !w.eligible(fresh) {
		t.Fatal("regular file must be eligible")
	}

	rejected := filepath.Join(dir, "rejected", "old.pdf")
	if err := os.WriteFile(rejected, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w.eligible(rejected) {
		t.Fatal("files under rejected/ must be ignored")
	}

	hidden := filepath.Join(dir, ".partial")
	if err := os.WriteFile(hidden, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w.eligible(hidden) {
		t.Fatal("hidden files must be ignored")
	}
}
