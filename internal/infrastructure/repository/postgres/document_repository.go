package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, original_filename, stored_filename, file_path, thumbnail_path, file_type,
file_size_bytes, file_hash, document_type, title, document_date, amount, currency, issuer, recipient,
reference_number, summary, ocr_text, ocr_confidence, tax_relevant, tax_year, tax_category,
filing_scope_id, status, review_status, ai_confidence, created_at, updated_at, scanned_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
`,
		doc.ID, doc.OriginalFilename, doc.StoredFilename, doc.FilePath, doc.ThumbnailPath, doc.FileType,
		doc.FileSizeBytes, doc.FileHash, string(doc.DocumentType), doc.Title, doc.DocumentDate, doc.Amount,
		doc.Currency, doc.Issuer, doc.Recipient, doc.ReferenceNumber, doc.Summary, doc.OcrText,
		doc.OcrConfidence, doc.TaxRelevant, doc.TaxYear, string(doc.TaxCategory),
		nullableString(doc.FilingScopeID), string(doc.Status), string(doc.ReviewStatus), doc.AIConfidence,
		doc.CreatedAt, doc.UpdatedAt, doc.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	return doc, nil
}

// FindByHash returns (nil, nil) when no document carries the hash.
func (r *DocumentRepository) FindByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE file_hash = $1
`, hash)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document by hash: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE documents
SET document_type = $2, title = $3, document_date = $4, amount = $5, currency = $6,
	issuer = $7, recipient = $8, reference_number = $9, summary = $10, tax_relevant = $11,
	tax_year = $12, tax_category = $13, filing_scope_id = $14, status = $15,
	review_status = $16, thumbnail_path = $17, updated_at = $18
WHERE id = $1
`,
		doc.ID, string(doc.DocumentType), doc.Title, doc.DocumentDate, doc.Amount, doc.Currency,
		doc.Issuer, doc.Recipient, doc.ReferenceNumber, doc.Summary, doc.TaxRelevant,
		doc.TaxYear, string(doc.TaxCategory), nullableString(doc.FilingScopeID), string(doc.Status),
		string(doc.ReviewStatus), doc.ThumbnailPath, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", doc.ID))
	}
	return nil
}

func (r *DocumentRepository) GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	tag := &domain.Tag{Name: name, IsAutoGenerated: true}
	err := conn(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO tags (name, is_auto_generated)
VALUES ($1, TRUE)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, is_auto_generated
`, name).Scan(&tag.ID, &tag.IsAutoGenerated)
	if err != nil {
		return nil, fmt.Errorf("get or create tag: %w", err)
	}
	return tag, nil
}

func (r *DocumentRepository) LinkTag(ctx context.Context, documentID string, tagID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO document_tags (document_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, documentID, tagID)
	if err != nil {
		return fmt.Errorf("link tag: %w", err)
	}
	return nil
}

func (r *DocumentRepository) CreateWarranty(ctx context.Context, w *domain.WarrantyInfo) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO warranty_info (id, document_id, product_name, purchase_date, warranty_end_date,
	warranty_type, warranty_duration_months, retailer)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		w.ID, w.DocumentID, w.ProductName, w.PurchaseDate, w.WarrantyEndDate,
		string(w.WarrantyType), w.DurationMonths, w.Retailer,
	)
	if err != nil {
		return fmt.Errorf("insert warranty: %w", err)
	}
	return nil
}

func (r *DocumentRepository) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO audit_log (document_id, action, details)
VALUES ($1, $2, $3)
`, nullableString(entry.DocumentID), string(entry.Action), entry.Details)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, taxCategory, status, reviewStatus string
	var scopeID sql.NullString
	var docDate, scannedAt *time.Time

	err := row.Scan(
		&doc.ID, &doc.OriginalFilename, &doc.StoredFilename, &doc.FilePath, &doc.ThumbnailPath, &doc.FileType,
		&doc.FileSizeBytes, &doc.FileHash, &docType, &doc.Title, &docDate, &doc.Amount,
		&doc.Currency, &doc.Issuer, &doc.Recipient, &doc.ReferenceNumber, &doc.Summary, &doc.OcrText,
		&doc.OcrConfidence, &doc.TaxRelevant, &doc.TaxYear, &taxCategory,
		&scopeID, &status, &reviewStatus, &doc.AIConfidence,
		&doc.CreatedAt, &doc.UpdatedAt, &scannedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DocumentType = domain.DocumentType(docType)
	doc.TaxCategory = domain.TaxCategory(taxCategory)
	doc.Status = domain.DocumentStatus(status)
	doc.ReviewStatus = domain.ReviewStatus(reviewStatus)
	doc.DocumentDate = docDate
	doc.ScannedAt = scannedAt
	if scopeID.Valid {
		doc.FilingScopeID = scopeID.String
	}
	return &doc, nil
}

// nullableString maps "" onto NULL for foreign key columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
