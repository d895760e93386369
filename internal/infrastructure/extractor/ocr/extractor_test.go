package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	outputs map[string][]byte
	err     error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs[name], nil
}

func tsvFixture() []byte {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	rows := []string{
		header,
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t",
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t96.5\tRechnung",
		"5\t1\t1\t1\t1\t2\t12\t0\t10\t10\t88.1\tStadtwerke",
		"5\t1\t1\t1\t1\t3\t24\t0\t10\t10\t-1\t",
	}
	return []byte(strings.Join(rows, "\n"))
}

func newTestExtractor(runner *fakeRunner) *Extractor {
	e := New("deu+eng", 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.runner = runner
	return e
}

func TestParseTSV(t *testing.T) {
	text, confidence := parseTSV(string(tsvFixture()))
	if text != "Rechnung Stadtwerke" {
		t.Errorf("text = %q", text)
	}
	want := (96.5 + 88.1) / 2 / 100
	if math.Abs(confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", confidence, want)
	}
}

func TestParseTSVNoWords(t *testing.T) {
	text, confidence := parseTSV("level\tpage\n1\t1\n")
	if text != "" || confidence != 0 {
		t.Errorf("got %q / %v", text, confidence)
	}
}

func TestExtractImage(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{"tesseract": tsvFixture()}}
	e := newTestExtractor(runner)

	result, err := e.Extract(context.Background(), "/tmp/scan.jpg", "jpg")
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.FullText != "Rechnung Stadtwerke" {
		t.Errorf("text = %q", result.FullText)
	}
	if result.PageCount != 1 {
		t.Errorf("page count = %d", result.PageCount)
	}
}

func TestExtractImageNoText(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{"tesseract": []byte("level\tconf\ttext\n")}}
	e := newTestExtractor(runner)

	result, err := e.Extract(context.Background(), "/tmp/blank.png", "png")
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("blank page must yield (nil, nil), got %+v", result)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	e := newTestExtractor(&fakeRunner{})
	if _, err := e.Extract(context.Background(), "/tmp/x.docx", "docx"); err == nil {
		t.Fatal("unsupported type must error")
	}
}

func TestExtractImageToolFailure(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("exec: tesseract: not found")}
	e := newTestExtractor(runner)

	if _, err := e.Extract(context.Background(), "/tmp/scan.jpg", "jpg"); err == nil {
		t.Fatal("tool failure must propagate")
	}
}

func TestDigitalTextRejectsNonPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(p, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(&fakeRunner{})
	if result := e.digitalText(p); result != nil {
		t.Fatalf("broken pdf must fall through to ocr, got %+v", result)
	}
}
