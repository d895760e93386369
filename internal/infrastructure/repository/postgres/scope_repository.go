package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type ScopeRepository struct {
	db *sql.DB
}

func NewScopeRepository(db *sql.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

// List returns scopes default-first, then by creation time, so keyword
// tie-breaks and fallbacks stay deterministic.
func (r *ScopeRepository) List(ctx context.Context) ([]domain.FilingScope, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, slug, keywords, is_default, created_at
FROM filing_scopes
ORDER BY is_default DESC, created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FilingScope, 0)
	for rows.Next() {
		scope, err := scanScope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return out, nil
}

// FindByName matches case-insensitively and returns (nil, nil) on a miss.
func (r *ScopeRepository) FindByName(ctx context.Context, name string) (*domain.FilingScope, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, slug, keywords, is_default, created_at
FROM filing_scopes
WHERE lower(name) = lower($1)
`, name)

	scope, err := scanScope(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find scope by name: %w", err)
	}
	return scope, nil
}

func (r *ScopeRepository) Create(ctx context.Context, scope *domain.FilingScope) error {
	keywordsJSON, err := json.Marshal(scope.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	if scope.Keywords == nil {
		keywordsJSON = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO filing_scopes (id, name, slug, keywords, is_default)
VALUES ($1, $2, $3, $4, $5)
`, scope.ID, scope.Name, scope.Slug, keywordsJSON, scope.IsDefault)
	if err != nil {
		return fmt.Errorf("insert scope: %w", err)
	}
	return nil
}

func scanScope(row rowScanner) (*domain.FilingScope, error) {
	var scope domain.FilingScope
	var keywordsRaw []byte
	err := row.Scan(&scope.ID, &scope.Name, &scope.Slug, &keywordsRaw, &scope.IsDefault, &scope.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(keywordsRaw, &scope.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	return &scope, nil
}
