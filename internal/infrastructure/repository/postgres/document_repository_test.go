package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

func documentRowColumns() []string {
	return []string{
		"id", "original_filename", "stored_filename", "file_path", "thumbnail_path", "file_type",
		"file_size_bytes", "file_hash", "document_type", "title", "document_date", "amount", "currency",
		"issuer", "recipient", "reference_number", "summary", "ocr_text", "ocr_confidence",
		"tax_relevant", "tax_year", "tax_category", "filing_scope_id", "status", "review_status",
		"ai_confidence", "created_at", "updated_at", "scanned_at",
	}
}

func TestDocumentRepositoryFindByHashMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery("WHERE file_hash").
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows(documentRowColumns()))

	doc, err := repo.FindByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if doc != nil {
		t.Fatalf("miss must yield (nil, nil), got %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositoryFindByHashHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now()
	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows(documentRowColumns()).
		AddRow("d-1", "a.pdf", "x_a.pdf", "/archive/privat/2025/01/RECHNUNG/x_a.pdf", "", "pdf",
			int64(100), "deadbeef", string(domain.TypeRechnung), "Rechnung", nil, nil, "EUR",
			"Stadtwerke", "", "", "", "text", 0.9,
			false, nil, "", nil, string(domain.DocumentActive), string(domain.ReviewOK),
			0.92, now, now, nil)

	mock.ExpectQuery("WHERE file_hash").
		WithArgs("deadbeef").
		WillReturnRows(rows)

	doc, err := repo.FindByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if doc == nil || doc.ID != "d-1" {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.DocumentType != domain.TypeRechnung {
		t.Errorf("document type = %q", doc.DocumentType)
	}
	if doc.FilingScopeID != "" {
		t.Errorf("NULL scope must map to empty string, got %q", doc.FilingScopeID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositoryGetOrCreateTagUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery("INSERT INTO tags").
		WithArgs("strom").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_auto_generated"}).AddRow(int64(7), true))

	tag, err := repo.GetOrCreateTag(context.Background(), "strom")
	if err != nil {
		t.Fatalf("GetOrCreateTag() error = %v", err)
	}
	if tag.ID != 7 || tag.Name != "strom" {
		t.Fatalf("tag = %+v", tag)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
