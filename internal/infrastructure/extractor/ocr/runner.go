package ocr

import (
	"context"
	"os"
	"os/exec"

	"github.com/ledongthuc/pdf"
)

// commandRunner abstracts the external CLI tools so tests can fake them.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	return pdf.Open(path)
}
