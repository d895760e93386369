package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

// Archiver deduplicates a processed file by content hash, moves it into the
// date/category archive tree and persists the document aggregate.
type Archiver struct {
	docs    ports.DocumentRepository
	reviews ports.ReviewRepository
	search  ports.SearchIndexer
	store   ports.FileStore
	tx      ports.TxRunner
	now     func() time.Time
	logger  *slog.Logger
}

func NewArchiver(
	docs ports.DocumentRepository,
	reviews ports.ReviewRepository,
	search ports.SearchIndexer,
	store ports.FileStore,
	tx ports.TxRunner,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		docs:    docs,
		reviews: reviews,
		search:  search,
		store:   store,
		tx:      tx,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func (a *Archiver) Archive(ctx context.Context, req ports.ArchiveRequest) (*domain.Document, error) {
	fileHash, err := HashFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}

	// Early duplicate exit. The unique constraint on file_hash is the
	// authoritative guard; this check just avoids moving the file first.
	existing, err := a.docs.FindByHash(ctx, fileHash)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing != nil {
		return nil, domain.WrapError(domain.ErrDuplicate, "archive document",
			fmt.Errorf("content hash %s already archived as document %s", fileHash[:12], existing.ID))
	}

	analysis := req.Analysis
	if analysis == nil {
		analysis = &domain.AnalysisResult{Mode: domain.AnalysisFailed, DocumentType: domain.TypeSonstiges}
	}

	docType := domain.ParseDocumentType(string(analysis.DocumentType))
	docDate := parseISODate(analysis.DocumentDate)
	taxCategory := domain.ParseTaxCategory(analysis.TaxCategory)

	ocrText := ""
	ocrConfidence := 0.0
	if req.Ocr != nil {
		ocrText = req.Ocr.FullText
		ocrConfidence = req.Ocr.AverageConfidence
	}

	var match ScopeMatch
	if len(req.Scopes) > 0 {
		match = MatchFilingScope(analysis, req.Scopes, ocrText)
	}

	relPath := buildArchivePath(match.ScopeSlug, docType, docDate, a.now(), req.StoredFilename)
	archivedPath, err := a.store.MoveToArchive(ctx, req.FilePath, relPath)
	if err != nil {
		return nil, fmt.Errorf("move to archive: %w", err)
	}
	a.logger.Info("file archived", "from", req.FilePath, "to", archivedPath)

	reviewStatus := domain.ReviewOK
	if analysis.NeedsReview {
		reviewStatus = domain.ReviewNeeded
	}

	now := a.now()
	title := analysis.Title
	if title == "" {
		title = req.OriginalFilename
	}
	currency := analysis.Currency
	if currency == "" {
		currency = "EUR"
	}

	doc := &domain.Document{
		ID:               uuid.NewString(),
		OriginalFilename: req.OriginalFilename,
		StoredFilename:   req.StoredFilename,
		FilePath:         archivedPath,
		ThumbnailPath:    req.ThumbnailPath,
		FileType:         req.FileType,
		FileSizeBytes:    req.FileSizeBytes,
		FileHash:         fileHash,
		DocumentType:     docType,
		Title:            title,
		DocumentDate:     docDate,
		Amount:           analysis.Amount,
		Currency:         currency,
		Issuer:           analysis.Sender,
		Recipient:        analysis.Recipient,
		ReferenceNumber:  analysis.ReferenceNumber,
		Summary:          analysis.Summary,
		OcrText:          ocrText,
		OcrConfidence:    ocrConfidence,
		TaxRelevant:      analysis.TaxRelevant,
		TaxYear:          analysis.TaxYear,
		TaxCategory:      taxCategory,
		FilingScopeID:    match.ScopeID,
		Status:           domain.DocumentActive,
		ReviewStatus:     reviewStatus,
		AIConfidence:     analysis.Confidence,
		CreatedAt:        now,
		UpdatedAt:        now,
		ScannedAt:        &now,
	}
	// The aggregate commits or rolls back as one unit. A half-committed
	// document would make every retry of the job trip the duplicate guard
	// while its questions and audit trail are gone.
	err = a.tx.InTx(ctx, func(ctx context.Context) error {
		if err := a.docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		if err := a.attachTags(ctx, doc.ID, analysis.Tags); err != nil {
			return err
		}
		if err := a.attachWarranty(ctx, doc.ID, analysis.Warranty); err != nil {
			return err
		}

		for _, text := range analysis.ReviewQuestions {
			if err := a.createQuestion(ctx, &domain.ReviewQuestion{
				DocumentID: doc.ID,
				Question:   text,
			}); err != nil {
				return err
			}
		}

		if len(req.Scopes) > 0 && (match.NewScopeSuggestion != "" || analysis.FilingScopeConfidence < scopeLLMConfidenceFloor) {
			if err := a.createScopeQuestion(ctx, doc, req.Scopes, match.NewScopeSuggestion); err != nil {
				return err
			}
			if doc.ReviewStatus != domain.ReviewNeeded {
				doc.ReviewStatus = domain.ReviewNeeded
				if err := a.docs.Update(ctx, doc); err != nil {
					return fmt.Errorf("update review status: %w", err)
				}
			}
		}

		details, _ := json.Marshal(map[string]any{
			"document_type": string(docType),
			"ai_confidence": analysis.Confidence,
		})
		if err := a.docs.AppendAudit(ctx, &domain.AuditEntry{
			DocumentID: doc.ID,
			Action:     domain.AuditCreated,
			Details:    string(details),
		}); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist document aggregate: %w", err)
	}

	// The index is a rebuildable derived artifact; failing to update it
	// must not fail the archive operation.
	if err := a.search.Index(ctx, doc.ID, doc.Title, doc.OcrText, doc.Issuer, doc.Summary,
		strings.Join(analysis.Tags, " ")); err != nil {
		a.logger.Warn("search indexing failed", "document_id", doc.ID, "error", err)
	}

	a.logger.Info("document archived",
		"document_id", doc.ID,
		"document_type", string(docType),
		"confidence", analysis.Confidence,
	)
	return doc, nil
}

func (a *Archiver) attachTags(ctx context.Context, docID string, names []string) error {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		tag, err := a.docs.GetOrCreateTag(ctx, name)
		if err != nil {
			return fmt.Errorf("get or create tag %q: %w", name, err)
		}
		if err := a.docs.LinkTag(ctx, docID, tag.ID); err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}
	return nil
}

func (a *Archiver) attachWarranty(ctx context.Context, docID string, data *domain.WarrantyData) error {
	if data == nil || !data.HasWarranty {
		return nil
	}
	purchase := parseISODate(data.PurchaseDate)
	end := parseISODate(data.WarrantyEndDate)
	if purchase == nil || end == nil {
		return nil
	}

	productName := data.ProductName
	if productName == "" {
		productName = "Unknown product"
	}
	months := data.DurationMonths
	if months <= 0 {
		months = domain.DefaultWarrantyMonths
	}

	if err := a.docs.CreateWarranty(ctx, &domain.WarrantyInfo{
		ID:              uuid.NewString(),
		DocumentID:      docID,
		ProductName:     productName,
		PurchaseDate:    *purchase,
		WarrantyEndDate: *end,
		WarrantyType:    domain.WarrantyLegal,
		DurationMonths:  months,
		Retailer:        data.StoreName,
	}); err != nil {
		return fmt.Errorf("create warranty info: %w", err)
	}
	return nil
}

func (a *Archiver) createScopeQuestion(
	ctx context.Context,
	doc *domain.Document,
	scopes []domain.FilingScope,
	suggestion string,
) error {
	names := make([]string, 0, len(scopes)+1)
	question := "Which storage area does this document belong to?"
	explanation := ""
	priority := 5
	if suggestion != "" {
		names = append(names, "NEU: "+suggestion)
		question = fmt.Sprintf("The model proposes a new storage area %q. Should it be created?", suggestion)
		explanation = fmt.Sprintf("The document matches no existing storage area. Proposal: %q", suggestion)
		priority = 8
	}
	for _, scope := range scopes {
		names = append(names, scope.Name)
	}

	return a.createQuestion(ctx, &domain.ReviewQuestion{
		DocumentID:       doc.ID,
		Question:         question,
		QuestionType:     "classification",
		Explanation:      explanation,
		FieldAffected:    "filing_scope",
		SuggestedAnswers: strings.Join(names, "|"),
		Priority:         priority,
	})
}

func (a *Archiver) createQuestion(ctx context.Context, q *domain.ReviewQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if err := a.reviews.CreateQuestion(ctx, q); err != nil {
		return fmt.Errorf("create review question: %w", err)
	}
	return nil
}

// HashFile computes the SHA-256 of a file, streaming in fixed-size chunks.
func HashFile(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, 8192)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// buildArchivePath derives {scope?}/{year}/{month}/{type}/{stored name};
// year and month come from the document date, falling back to wall clock.
func buildArchivePath(
	scopeSlug string,
	docType domain.DocumentType,
	docDate *time.Time,
	now time.Time,
	storedFilename string,
) string {
	ref := now
	if docDate != nil {
		ref = *docDate
	}
	parts := []string{}
	if scopeSlug != "" {
		parts = append(parts, scopeSlug)
	}
	parts = append(parts,
		fmt.Sprintf("%04d", ref.Year()),
		fmt.Sprintf("%02d", int(ref.Month())),
		string(docType),
		storedFilename,
	)
	return path.Join(parts...)
}

func parseISODate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
