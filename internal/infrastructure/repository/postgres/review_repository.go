package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) CreateQuestion(ctx context.Context, q *domain.ReviewQuestion) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO review_questions (id, document_id, question, question_type, explanation,
	field_affected, suggested_answers, priority)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		q.ID, q.DocumentID, q.Question, q.QuestionType, q.Explanation,
		q.FieldAffected, q.SuggestedAnswers, q.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert review question: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetQuestion(ctx context.Context, id string) (*domain.ReviewQuestion, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT id, document_id, question, question_type, explanation, answer, field_affected,
	suggested_answers, is_answered, priority, created_at, answered_at
FROM review_questions
WHERE id = $1
`, id)

	var q domain.ReviewQuestion
	var answeredAt *time.Time
	err := row.Scan(
		&q.ID, &q.DocumentID, &q.Question, &q.QuestionType, &q.Explanation, &q.Answer,
		&q.FieldAffected, &q.SuggestedAnswers, &q.IsAnswered, &q.Priority, &q.CreatedAt, &answeredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review question not found: %s", id)
		}
		return nil, fmt.Errorf("get review question: %w", err)
	}
	q.AnsweredAt = answeredAt
	return &q, nil
}

func (r *ReviewRepository) MarkAnswered(ctx context.Context, id, answer string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE review_questions
SET answer = $2, is_answered = TRUE, answered_at = now()
WHERE id = $1
`, id, answer)
	if err != nil {
		return fmt.Errorf("mark question answered: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark answered rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("review question not found: %s", id)
	}
	return nil
}

func (r *ReviewRepository) CountOpen(ctx context.Context, documentID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT count(*)
FROM review_questions
WHERE document_id = $1 AND NOT is_answered
`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open questions: %w", err)
	}
	return count, nil
}
