package httpadapter

import (
	"net/http"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrJobNotFound),
		domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicate):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
