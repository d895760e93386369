package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type CorrectionRepository struct {
	db *sql.DB
}

func NewCorrectionRepository(db *sql.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Find returns (nil, nil) when the triple has not been recorded yet.
func (r *CorrectionRepository) Find(ctx context.Context, field, original, corrected string) (*domain.CorrectionMapping, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, field, original_value, corrected_value, occurrence_count, auto_apply, created_at, updated_at
FROM correction_mappings
WHERE field = $1 AND original_value = $2 AND corrected_value = $3
`, field, original, corrected)

	var m domain.CorrectionMapping
	err := row.Scan(&m.ID, &m.Field, &m.OriginalValue, &m.CorrectedValue,
		&m.OccurrenceCount, &m.AutoApply, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find correction mapping: %w", err)
	}
	return &m, nil
}

func (r *CorrectionRepository) Create(ctx context.Context, m *domain.CorrectionMapping) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO correction_mappings (id, field, original_value, corrected_value, occurrence_count, auto_apply)
VALUES ($1,$2,$3,$4,$5,$6)
`, m.ID, m.Field, m.OriginalValue, m.CorrectedValue, m.OccurrenceCount, m.AutoApply)
	if err != nil {
		return fmt.Errorf("insert correction mapping: %w", err)
	}
	return nil
}

func (r *CorrectionRepository) Update(ctx context.Context, m *domain.CorrectionMapping) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE correction_mappings
SET occurrence_count = $2, auto_apply = $3, updated_at = now()
WHERE id = $1
`, m.ID, m.OccurrenceCount, m.AutoApply)
	if err != nil {
		return fmt.Errorf("update correction mapping: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update correction rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("correction mapping not found: %s", m.ID)
	}
	return nil
}
