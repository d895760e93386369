package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables idempotently.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	stored_filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size_bytes BIGINT NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	ocr_text TEXT NOT NULL DEFAULT '',
	ocr_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	analysis_json TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON processing_jobs(status, created_at);

CREATE TABLE IF NOT EXISTS filing_scopes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	slug TEXT NOT NULL UNIQUE,
	keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	is_default BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	stored_filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	file_type TEXT NOT NULL,
	file_size_bytes BIGINT NOT NULL DEFAULT 0,
	file_hash TEXT NOT NULL UNIQUE,
	document_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	document_date DATE,
	amount DOUBLE PRECISION,
	currency TEXT NOT NULL DEFAULT 'EUR',
	issuer TEXT NOT NULL DEFAULT '',
	recipient TEXT NOT NULL DEFAULT '',
	reference_number TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	ocr_text TEXT NOT NULL DEFAULT '',
	ocr_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	tax_relevant BOOLEAN NOT NULL DEFAULT FALSE,
	tax_year INTEGER,
	tax_category TEXT NOT NULL DEFAULT '',
	filing_scope_id TEXT REFERENCES filing_scopes(id),
	status TEXT NOT NULL,
	review_status TEXT NOT NULL,
	ai_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	scanned_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(document_type);
CREATE INDEX IF NOT EXISTS idx_documents_review ON documents(review_status);
CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(filing_scope_id);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	is_auto_generated BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (document_id, tag_id)
);

CREATE TABLE IF NOT EXISTS warranty_info (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	product_name TEXT NOT NULL,
	purchase_date DATE NOT NULL,
	warranty_end_date DATE NOT NULL,
	warranty_type TEXT NOT NULL,
	warranty_duration_months INTEGER NOT NULL,
	retailer TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_warranty_end ON warranty_info(warranty_end_date);

CREATE TABLE IF NOT EXISTS review_questions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	question TEXT NOT NULL,
	question_type TEXT NOT NULL DEFAULT '',
	explanation TEXT NOT NULL DEFAULT '',
	answer TEXT NOT NULL DEFAULT '',
	field_affected TEXT NOT NULL DEFAULT '',
	suggested_answers TEXT NOT NULL DEFAULT '',
	is_answered BOOLEAN NOT NULL DEFAULT FALSE,
	priority INTEGER NOT NULL DEFAULT 5,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	answered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_questions_open ON review_questions(document_id) WHERE NOT is_answered;

CREATE TABLE IF NOT EXISTS correction_mappings (
	id TEXT PRIMARY KEY,
	field TEXT NOT NULL,
	original_value TEXT NOT NULL,
	corrected_value TEXT NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	auto_apply BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (field, original_value, corrected_value)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	document_id TEXT REFERENCES documents(id) ON DELETE SET NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_index (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	content_tsv TSVECTOR NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_tsv ON search_index USING GIN (content_tsv);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
