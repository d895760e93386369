package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// SearchIndexer maintains the tsvector index row per document. The index
// is derived data; callers may rebuild it at any time.
type SearchIndexer struct {
	db *sql.DB
}

func NewSearchIndexer(db *sql.DB) *SearchIndexer {
	return &SearchIndexer{db: db}
}

func (s *SearchIndexer) Index(ctx context.Context, docID, title, ocrText, issuer, summary, tags string) error {
	// Weighted: title and issuer rank above body text.
	_, err := s.db.ExecContext(ctx, `
INSERT INTO search_index (document_id, content_tsv)
VALUES ($1,
	setweight(to_tsvector('german', coalesce($2, '')), 'A') ||
	setweight(to_tsvector('german', coalesce($4, '')), 'A') ||
	setweight(to_tsvector('german', coalesce($6, '')), 'B') ||
	setweight(to_tsvector('german', coalesce($5, '')), 'C') ||
	setweight(to_tsvector('german', coalesce($3, '')), 'D')
)
ON CONFLICT (document_id) DO UPDATE SET content_tsv = EXCLUDED.content_tsv
`, docID, title, ocrText, issuer, summary, tags)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}
