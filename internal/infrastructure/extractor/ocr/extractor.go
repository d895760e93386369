package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

// minDigitalTextChars is the threshold below which a PDF's embedded text
// layer is considered junk and the file is treated as a scan.
const minDigitalTextChars = 50

// Extractor produces plain text from stored files. Digitally born PDFs
// are read directly through their text layer; scans and images go through
// the tesseract CLI.
type Extractor struct {
	languages string
	maxPages  int
	runner    commandRunner
	logger    *slog.Logger
}

func New(languages string, maxPages int, logger *slog.Logger) *Extractor {
	if languages == "" {
		languages = "deu+eng"
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Extractor{
		languages: languages,
		maxPages:  maxPages,
		runner:    execRunner{},
		logger:    logger,
	}
}

// Extract returns (nil, nil) when the file yields no text at all; that is
// a degraded outcome for the caller, not an error.
func (e *Extractor) Extract(ctx context.Context, path, fileType string) (*domain.OcrResult, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return e.extractPDF(ctx, path)
	case "jpg", "jpeg", "png", "tiff", "bmp":
		return e.extractImage(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported file type for extraction: %s", fileType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (*domain.OcrResult, error) {
	if result := e.digitalText(path); result != nil {
		e.logger.Info("pdf text layer used", "path", path, "pages", result.PageCount)
		return result, nil
	}
	return e.ocrPDF(ctx, path)
}

// digitalText reads the embedded text layer. A nil return means the layer
// is missing or too thin to trust.
func (e *Extractor) digitalText(path string) *domain.OcrResult {
	f, reader, err := openPDF(path)
	if err != nil {
		e.logger.Warn("pdf open failed, treating as scan", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	pageCount := reader.NumPage()
	if pageCount > e.maxPages {
		pageCount = e.maxPages
	}

	var pages []domain.PageText
	var all strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("pdf page text failed", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{PageNumber: i, Text: text, Confidence: 1.0})
		all.WriteString(text)
		all.WriteString("\n\n")
	}

	full := strings.TrimSpace(all.String())
	if len(full) < minDigitalTextChars {
		return nil
	}
	return &domain.OcrResult{
		FullText:          full,
		Pages:             pages,
		AverageConfidence: 1.0,
		PageCount:         len(pages),
	}
}

// ocrPDF renders each page to an image via pdftoppm and runs tesseract on
// the results.
func (e *Extractor) ocrPDF(ctx context.Context, path string) (*domain.OcrResult, error) {
	tmpDir, err := os.MkdirTemp("", "zettelwerk-ocr-")
	if err != nil {
		return nil, fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	_, err = e.runner.Run(ctx, "pdftoppm",
		"-png", "-r", "200",
		"-f", "1", "-l", strconv.Itoa(e.maxPages),
		path, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf pages: %w", err)
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	sort.Strings(images)

	var pages []domain.PageText
	var all strings.Builder
	confidenceSum := 0.0
	for i, img := range images {
		text, confidence, err := e.ocrFile(ctx, img)
		if err != nil {
			e.logger.Warn("page ocr failed", "path", path, "page", i+1, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{PageNumber: i + 1, Text: text, Confidence: confidence})
		confidenceSum += confidence
		all.WriteString(text)
		all.WriteString("\n\n")
	}

	return buildResult(strings.TrimSpace(all.String()), pages, confidenceSum), nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (*domain.OcrResult, error) {
	text, confidence, err := e.ocrFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	pages := []domain.PageText{{PageNumber: 1, Text: text, Confidence: confidence}}
	return buildResult(text, pages, confidence), nil
}

// ocrFile runs tesseract in TSV mode and aggregates word confidences.
func (e *Extractor) ocrFile(ctx context.Context, path string) (string, float64, error) {
	out, err := e.runner.Run(ctx, "tesseract", path, "stdout", "-l", e.languages, "tsv")
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w", err)
	}
	text, confidence := parseTSV(string(out))
	return text, confidence, nil
}

// parseTSV reassembles word rows (level 5) from tesseract's TSV output.
// Word confidence is 0..100; -1 marks non-text rows.
func parseTSV(raw string) (string, float64) {
	var words []string
	confidenceSum := 0.0
	counted := 0

	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		words = append(words, word)
		confidenceSum += conf
		counted++
	}

	if counted == 0 {
		return "", 0
	}
	return strings.Join(words, " "), confidenceSum / float64(counted) / 100.0
}

func buildResult(full string, pages []domain.PageText, confidenceSum float64) *domain.OcrResult {
	if full == "" || len(pages) == 0 {
		return nil
	}
	avg := confidenceSum
	if len(pages) > 1 {
		avg = confidenceSum / float64(len(pages))
	}
	return &domain.OcrResult{
		FullText:          full,
		Pages:             pages,
		AverageConfidence: avg,
		PageCount:         len(pages),
	}
}
