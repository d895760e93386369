package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Generator renders a small preview image per document. Thumbnails are a
// convenience; every caller treats a failure here as non-fatal.
type Generator struct {
	dir     string
	maxSize int
	logger  *slog.Logger
}

func New(dir string, maxSize int, logger *slog.Logger) (*Generator, error) {
	if dir == "" {
		dir = "./data/thumbnails"
	}
	if maxSize <= 0 {
		maxSize = 300
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	return &Generator{dir: dir, maxSize: maxSize, logger: logger}, nil
}

func (g *Generator) Generate(ctx context.Context, path, fileType, jobID string) (string, error) {
	dest := filepath.Join(g.dir, jobID+".png")

	var cmd *exec.Cmd
	switch strings.ToLower(fileType) {
	case "pdf":
		// First page only; pdftoppm appends the page suffix itself.
		prefix := strings.TrimSuffix(dest, ".png")
		cmd = exec.CommandContext(ctx, "pdftoppm",
			"-png", "-singlefile",
			"-scale-to", strconv.Itoa(g.maxSize),
			"-f", "1", "-l", "1",
			path, prefix,
		)
	case "jpg", "jpeg", "png", "tiff", "bmp":
		size := fmt.Sprintf("%dx%d", g.maxSize, g.maxSize)
		cmd = exec.CommandContext(ctx, "convert", path, "-thumbnail", size, dest)
	default:
		return "", fmt.Errorf("no thumbnail support for file type %s", fileType)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("render thumbnail: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("thumbnail not written: %w", err)
	}

	g.logger.Info("thumbnail generated", "job_id", jobID, "path", dest)
	return dest, nil
}
