package usecase

import (
	"strings"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

// scopeLLMConfidenceFloor is the minimum filing-scope confidence at which a
// model-named scope is trusted without review.
const scopeLLMConfidenceFloor = 0.7

// ScopeMatch is the outcome of resolving a filing scope for one document.
// ScopeID/ScopeSlug are empty when no scopes exist at all.
type ScopeMatch struct {
	ScopeID            string
	ScopeSlug          string
	NewScopeSuggestion string
}

// MatchFilingScope resolves the target scope with a fixed priority:
// keyword hits in the OCR text (literal letterhead text beats model
// inference), then a model-named known scope with sufficient confidence,
// then a new-scope suggestion, then the default scope, then the first
// scope in the supplied order.
func MatchFilingScope(
	analysis *domain.AnalysisResult,
	scopes []domain.FilingScope,
	ocrText string,
) ScopeMatch {
	if ocrText != "" {
		textLower := strings.ToLower(ocrText)
		var best *domain.FilingScope
		bestHits := 0
		for i := range scopes {
			hits := 0
			for _, kw := range scopes[i].Keywords {
				if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(textLower, kw) {
					hits++
				}
			}
			// Strict > keeps ties on the first scope encountered.
			if hits > bestHits {
				bestHits = hits
				best = &scopes[i]
			}
		}
		if best != nil {
			return ScopeMatch{ScopeID: best.ID, ScopeSlug: best.Slug}
		}
	}

	llmScope := ""
	llmConfidence := 0.0
	if analysis != nil {
		llmScope = strings.TrimSpace(analysis.FilingScope)
		llmConfidence = analysis.FilingScopeConfidence
	}

	if llmScope != "" && llmConfidence >= scopeLLMConfidenceFloor {
		for _, scope := range scopes {
			if strings.EqualFold(scope.Name, llmScope) {
				return ScopeMatch{ScopeID: scope.ID, ScopeSlug: scope.Slug}
			}
		}
	}

	suggestion := ""
	if llmScope != "" && llmConfidence > 0 && !scopeNameKnown(scopes, llmScope) {
		suggestion = llmScope
	}

	for _, scope := range scopes {
		if scope.IsDefault {
			return ScopeMatch{ScopeID: scope.ID, ScopeSlug: scope.Slug, NewScopeSuggestion: suggestion}
		}
	}

	// Callers should guarantee a default exists; the first scope is a
	// last-resort fallback.
	if len(scopes) > 0 {
		return ScopeMatch{ScopeID: scopes[0].ID, ScopeSlug: scopes[0].Slug, NewScopeSuggestion: suggestion}
	}

	return ScopeMatch{NewScopeSuggestion: suggestion}
}

func scopeNameKnown(scopes []domain.FilingScope, name string) bool {
	for _, scope := range scopes {
		if strings.EqualFold(scope.Name, name) {
			return true
		}
	}
	return false
}
