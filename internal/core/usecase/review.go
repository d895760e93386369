package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/fileutil"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

// newScopePrefix marks a review answer that asks for a new filing scope.
const newScopePrefix = "NEU: "

// ReviewService applies human answers to pending review questions and
// feeds repeated corrections into the learner.
type ReviewService struct {
	docs        ports.DocumentRepository
	reviews     ports.ReviewRepository
	scopes      ports.ScopeRepository
	corrections ports.CorrectionRepository
	logger      *slog.Logger
}

func NewReviewService(
	docs ports.DocumentRepository,
	reviews ports.ReviewRepository,
	scopes ports.ScopeRepository,
	corrections ports.CorrectionRepository,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		docs:        docs,
		reviews:     reviews,
		scopes:      scopes,
		corrections: corrections,
		logger:      logger,
	}
}

func (s *ReviewService) AnswerQuestion(ctx context.Context, questionID, answer string) (*domain.Document, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer review question",
			fmt.Errorf("answer must not be empty"))
	}

	question, err := s.reviews.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load review question: %w", err)
	}

	doc, err := s.docs.GetByID(ctx, question.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	if question.FieldAffected != "" {
		if err := s.applyAnswer(ctx, doc, question.FieldAffected, answer); err != nil {
			return nil, err
		}
	}

	if err := s.reviews.MarkAnswered(ctx, questionID, answer); err != nil {
		return nil, fmt.Errorf("mark question answered: %w", err)
	}

	open, err := s.reviews.CountOpen(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("count open questions: %w", err)
	}
	if open == 0 && doc.ReviewStatus != domain.Reviewed {
		doc.ReviewStatus = domain.Reviewed
		if err := s.docs.AppendAudit(ctx, &domain.AuditEntry{
			DocumentID: doc.ID,
			Action:     domain.AuditReviewed,
		}); err != nil {
			return nil, fmt.Errorf("append audit entry: %w", err)
		}
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	s.logger.Info("review question answered",
		"question_id", questionID,
		"document_id", doc.ID,
		"field", question.FieldAffected,
		"remaining_open", open,
	)
	return doc, nil
}

func (s *ReviewService) applyAnswer(ctx context.Context, doc *domain.Document, field, answer string) error {
	switch field {
	case "title", "issuer", "recipient", "reference_number", "summary":
		old := stringField(doc, field)
		setStringField(doc, field, answer)
		if old != "" && old != answer {
			if err := s.RecordCorrection(ctx, field, old, answer); err != nil {
				return err
			}
		}

	case "amount":
		normalized := strings.ReplaceAll(strings.ReplaceAll(answer, ",", "."), " ", "")
		if v, err := strconv.ParseFloat(normalized, 64); err == nil {
			doc.Amount = &v
		}

	case "document_date":
		for _, layout := range []string{"02.01.2006", "2006-01-02", "02/01/2006"} {
			if t, err := time.Parse(layout, answer); err == nil {
				doc.DocumentDate = &t
				break
			}
		}

	case "document_type":
		old := string(doc.DocumentType)
		doc.DocumentType = domain.ParseDocumentType(answer)
		if old != string(doc.DocumentType) {
			if err := s.RecordCorrection(ctx, field, old, string(doc.DocumentType)); err != nil {
				return err
			}
		}

	case "tax_relevant":
		switch strings.ToLower(answer) {
		case "ja", "yes", "true", "1":
			doc.TaxRelevant = true
		default:
			doc.TaxRelevant = false
		}

	case "filing_scope":
		return s.applyScopeAnswer(ctx, doc, answer)
	}
	return nil
}

func (s *ReviewService) applyScopeAnswer(ctx context.Context, doc *domain.Document, answer string) error {
	var scope *domain.FilingScope
	var err error

	if name, ok := strings.CutPrefix(answer, newScopePrefix); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}
		scope, err = s.scopes.FindByName(ctx, name)
		if err != nil {
			return fmt.Errorf("look up scope %q: %w", name, err)
		}
		if scope == nil {
			scope = &domain.FilingScope{
				ID:   uuid.NewString(),
				Name: name,
				Slug: fileutil.Slug(name),
			}
			if err := s.scopes.Create(ctx, scope); err != nil {
				return fmt.Errorf("create scope %q: %w", name, err)
			}
			s.logger.Info("new filing scope created", "name", name, "slug", scope.Slug)
		}
	} else {
		scope, err = s.scopes.FindByName(ctx, answer)
		if err != nil {
			return fmt.Errorf("look up scope %q: %w", answer, err)
		}
		if scope == nil {
			return nil
		}
	}

	if doc.FilingScopeID != "" && doc.FilingScopeID != scope.ID {
		if err := s.RecordCorrection(ctx, "filing_scope", doc.FilingScopeID, scope.ID); err != nil {
			return err
		}
	}
	doc.FilingScopeID = scope.ID
	return nil
}

// RecordCorrection upserts the (field, original, corrected) triple and
// flags the mapping for auto-apply once it has recurred often enough.
// Applying flagged mappings automatically is a consumer concern.
func (s *ReviewService) RecordCorrection(ctx context.Context, field, original, corrected string) error {
	mapping, err := s.corrections.Find(ctx, field, original, corrected)
	if err != nil {
		return fmt.Errorf("find correction mapping: %w", err)
	}

	if mapping == nil {
		return s.corrections.Create(ctx, &domain.CorrectionMapping{
			ID:              uuid.NewString(),
			Field:           field,
			OriginalValue:   original,
			CorrectedValue:  corrected,
			OccurrenceCount: 1,
		})
	}

	mapping.OccurrenceCount++
	if mapping.OccurrenceCount >= domain.AutoApplyThreshold {
		mapping.AutoApply = true
	}
	if err := s.corrections.Update(ctx, mapping); err != nil {
		return fmt.Errorf("update correction mapping: %w", err)
	}
	if mapping.AutoApply {
		s.logger.Info("correction mapping promoted to auto-apply",
			"field", field, "occurrences", mapping.OccurrenceCount)
	}
	return nil
}

func stringField(doc *domain.Document, field string) string {
	switch field {
	case "title":
		return doc.Title
	case "issuer":
		return doc.Issuer
	case "recipient":
		return doc.Recipient
	case "reference_number":
		return doc.ReferenceNumber
	case "summary":
		return doc.Summary
	}
	return ""
}

func setStringField(doc *domain.Document, field, value string) {
	switch field {
	case "title":
		doc.Title = value
	case "issuer":
		doc.Issuer = value
	case "recipient":
		doc.Recipient = value
	case "reference_number":
		doc.ReferenceNumber = value
	case "summary":
		doc.Summary = value
	}
}
