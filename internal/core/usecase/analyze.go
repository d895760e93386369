package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

// DefaultTextBudget bounds how many OCR characters are sent to the model.
const DefaultTextBudget = 4000

const truncationMarker = "\n\n[...text truncated...]\n\n"

// Analyzer turns extracted text into structured metadata via a combined
// single-call strategy with a sequential per-aspect fallback. It never
// returns an error: every failure mode degrades to a needs-review result.
type Analyzer struct {
	llm        ports.LLMClient
	threshold  float64
	textBudget int
	logger     *slog.Logger
}

func NewAnalyzer(llm ports.LLMClient, confidenceThreshold float64, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		llm:        llm,
		threshold:  confidenceThreshold,
		textBudget: DefaultTextBudget,
		logger:     logger,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, ocrText string) *domain.AnalysisResult {
	if strings.TrimSpace(ocrText) == "" {
		return failedAnalysis("Text extraction produced no text. Please review the document manually.")
	}

	text := TruncateText(ocrText, a.textBudget)

	if result := a.tryCombined(ctx, text); result != nil {
		a.logger.Info("combined analysis succeeded",
			"document_type", string(result.DocumentType),
			"confidence", result.Confidence,
		)
		return result
	}

	a.logger.Info("combined analysis failed, falling back to sequential calls")
	if result := a.trySequential(ctx, text); result != nil {
		a.logger.Info("sequential analysis succeeded", "document_type", string(result.DocumentType))
		return result
	}

	a.logger.Warn("analysis failed on both strategies")
	return failedAnalysis("Automatic analysis could not run (language model unreachable). Please classify the document manually.")
}

// TruncateText keeps the first and last half of the budget verbatim with a
// marker in between. Letterhead and totals live at the two ends of a
// document, so both are preserved. The budget counts characters, not
// bytes, so umlauts and currency signs never get split.
func TruncateText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	half := maxChars / 2
	return string(runes[:half]) + truncationMarker + string(runes[len(runes)-half:])
}

// combinedPayload is the strict shape expected from the single
// "do everything" prompt.
type combinedPayload struct {
	DocumentType          string               `json:"document_type"`
	Confidence            float64              `json:"confidence"`
	Title                 string               `json:"title"`
	Sender                string               `json:"sender"`
	Recipient             string               `json:"recipient"`
	DocumentDate          string               `json:"document_date"`
	Amount                *float64             `json:"amount"`
	Currency              string               `json:"currency"`
	ReferenceNumber       string               `json:"reference_number"`
	Tags                  []string             `json:"tags"`
	Summary               string               `json:"summary"`
	TaxRelevant           bool                 `json:"tax_relevant"`
	TaxCategory           string               `json:"tax_category"`
	TaxYear               *int                 `json:"tax_year"`
	Warranty              *domain.WarrantyData `json:"warranty_info"`
	FilingScope           string               `json:"filing_scope"`
	FilingScopeConfidence float64              `json:"filing_scope_confidence"`
	NeedsReview           bool                 `json:"needs_review"`
	ReviewQuestions       []string             `json:"review_questions"`
}

func (a *Analyzer) tryCombined(ctx context.Context, text string) *domain.AnalysisResult {
	raw, err := a.llm.Generate(ctx, buildCombinedPrompt(text), analysisSystemPrompt)
	if err != nil {
		a.logger.Warn("combined analysis call failed", "error", err)
		return nil
	}

	payload := ExtractJSON(raw)
	if payload == nil {
		a.logger.Warn("combined analysis response contained no parseable JSON")
		return nil
	}
	var data combinedPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		a.logger.Warn("combined analysis JSON did not match expected shape", "error", err)
		return nil
	}

	needsReview := data.NeedsReview || data.Confidence < a.threshold
	questions := data.ReviewQuestions
	if data.Confidence < a.threshold && len(questions) == 0 {
		questions = []string{confidenceQuestion(data.Confidence)}
	}

	return &domain.AnalysisResult{
		Mode:                  domain.AnalysisCombined,
		DocumentType:          domain.ParseDocumentType(data.DocumentType),
		Confidence:            data.Confidence,
		Title:                 data.Title,
		Sender:                data.Sender,
		Recipient:             data.Recipient,
		DocumentDate:          data.DocumentDate,
		Amount:                data.Amount,
		Currency:              data.Currency,
		ReferenceNumber:       data.ReferenceNumber,
		Tags:                  data.Tags,
		Summary:               data.Summary,
		TaxRelevant:           data.TaxRelevant,
		TaxCategory:           data.TaxCategory,
		TaxYear:               data.TaxYear,
		Warranty:              data.Warranty,
		FilingScope:           data.FilingScope,
		FilingScopeConfidence: data.FilingScopeConfidence,
		NeedsReview:           needsReview,
		ReviewQuestions:       questions,
	}
}

type classificationPayload struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
}

type metadataPayload struct {
	Title           string   `json:"title"`
	Sender          string   `json:"sender"`
	Recipient       string   `json:"recipient"`
	DocumentDate    string   `json:"document_date"`
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	ReferenceNumber string   `json:"reference_number"`
	Tags            []string `json:"tags"`
	Summary         string   `json:"summary"`
}

type taxPayload struct {
	TaxRelevant bool   `json:"tax_relevant"`
	TaxCategory string `json:"tax_category"`
	TaxYear     *int   `json:"tax_year"`
}

// trySequential issues four independent calls. Each sub-call tolerates
// failure on its own; fragmentary analysis is inherently less trustworthy,
// so the result is always marked needs-review.
func (a *Analyzer) trySequential(ctx context.Context, text string) *domain.AnalysisResult {
	result := &domain.AnalysisResult{
		Mode:         domain.AnalysisSequential,
		DocumentType: domain.TypeSonstiges,
		NeedsReview:  true,
	}

	var cls classificationPayload
	if a.callInto(ctx, "classification", buildClassifyPrompt(text), &cls) {
		result.DocumentType = domain.ParseDocumentType(cls.DocumentType)
		result.Confidence = cls.Confidence
	}

	var meta metadataPayload
	if a.callInto(ctx, "metadata", buildMetadataPrompt(text), &meta) {
		result.Title = meta.Title
		result.Sender = meta.Sender
		result.Recipient = meta.Recipient
		result.DocumentDate = meta.DocumentDate
		result.Amount = meta.Amount
		result.Currency = meta.Currency
		result.ReferenceNumber = meta.ReferenceNumber
		result.Tags = meta.Tags
		result.Summary = meta.Summary
	}

	var tax taxPayload
	if a.callInto(ctx, "tax relevance", buildTaxPrompt(text), &tax) {
		result.TaxRelevant = tax.TaxRelevant
		result.TaxCategory = tax.TaxCategory
		result.TaxYear = tax.TaxYear
	}

	var warranty domain.WarrantyData
	if a.callInto(ctx, "warranty", buildWarrantyPrompt(text), &warranty) {
		result.Warranty = &warranty
	}

	// At minimum the classification or the title must have come through.
	if result.DocumentType != domain.TypeSonstiges || result.Title != "" {
		return result
	}
	return nil
}

// callInto runs one sequential sub-call and decodes its JSON; a failing
// sub-call is logged and leaves the target at its zero value.
func (a *Analyzer) callInto(ctx context.Context, aspect, prompt string, out any) bool {
	raw, err := a.llm.Generate(ctx, prompt, analysisSystemPrompt)
	if err != nil {
		a.logger.Warn("sequential sub-call failed", "aspect", aspect, "error", err)
		return false
	}
	payload := ExtractJSON(raw)
	if payload == nil {
		a.logger.Warn("sequential sub-call returned no JSON", "aspect", aspect)
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		a.logger.Warn("sequential sub-call JSON mismatch", "aspect", aspect, "error", err)
		return false
	}
	return true
}

func failedAnalysis(question string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Mode:            domain.AnalysisFailed,
		DocumentType:    domain.TypeSonstiges,
		NeedsReview:     true,
		ReviewQuestions: []string{question},
	}
}

func confidenceQuestion(confidence float64) string {
	return fmt.Sprintf(
		"Automatic detection is uncertain (confidence: %.0f%%). Please verify the extracted data.",
		confidence*100,
	)
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

// ExtractJSON pulls a JSON object out of a model response using an ordered
// list of strategies: the raw response, a fenced code block, and finally
// the span between the first '{' and the last '}'. Returns nil when none
// of them yields valid JSON.
func ExtractJSON(raw string) []byte {
	strategies := [](func(string) string){
		func(s string) string { return s },
		func(s string) string {
			if m := fencedBlock.FindStringSubmatch(s); m != nil {
				return m[1]
			}
			return ""
		},
		func(s string) string {
			start := strings.Index(s, "{")
			end := strings.LastIndex(s, "}")
			if start >= 0 && end > start {
				return s[start : end+1]
			}
			return ""
		},
	}

	for _, strategy := range strategies {
		candidate := strings.TrimSpace(strategy(raw))
		if candidate == "" {
			continue
		}
		if json.Valid([]byte(candidate)) && strings.HasPrefix(candidate, "{") {
			return []byte(candidate)
		}
	}
	return nil
}
