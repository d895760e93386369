package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

func TestInTxCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := NewTxRunner(db)
	repo := NewDocumentRepository(db)
	err = runner.InTx(context.Background(), func(ctx context.Context) error {
		return repo.AppendAudit(ctx, &domain.AuditEntry{
			DocumentID: "doc-1",
			Action:     domain.AuditCreated,
		})
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	errInsert := errors.New("questions table gone")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO review_questions").
		WillReturnError(errInsert)
	mock.ExpectRollback()

	runner := NewTxRunner(db)
	repo := NewReviewRepository(db)
	err = runner.InTx(context.Background(), func(ctx context.Context) error {
		return repo.CreateQuestion(ctx, &domain.ReviewQuestion{
			ID:         "q-1",
			DocumentID: "doc-1",
			Question:   "Which storage area does this document belong to?",
		})
	})
	if !errors.Is(err, errInsert) {
		t.Fatalf("InTx() error = %v, want insert error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInTxJoinsExistingTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	// One begin, one commit: the nested scope must reuse the open
	// transaction instead of starting a second one.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := NewTxRunner(db)
	repo := NewDocumentRepository(db)
	err = runner.InTx(context.Background(), func(ctx context.Context) error {
		return runner.InTx(ctx, func(ctx context.Context) error {
			return repo.AppendAudit(ctx, &domain.AuditEntry{
				DocumentID: "doc-1",
				Action:     domain.AuditCreated,
			})
		})
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
