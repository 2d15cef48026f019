package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sdslabs/policyctl/internal/apperrors"
)

// errorResponse is the JSON body carrying a human message and the
// numeric status, per spec.md §7's propagation policy.
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// statusFor maps the error taxonomy (§7) onto an HTTP status.
// legacyParseErrorStatus implements the compatibility flag named by
// SPEC_FULL.md §6: when true, ErrInvalidRule surfaces as 401 for wire
// compatibility with original_source; otherwise it is 400.
func statusFor(err error, legacyParseErrorStatus bool) int {
	switch {
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidRule):
		if legacyParseErrorStatus {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrFileSync):
		return http.StatusInternalServerError
	case errors.Is(err, apperrors.ErrActorLifecycle):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the status/body pair for err and stops the
// handler chain.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := statusFor(err, s.Config.REST.LegacyParseErrorStatus)
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Status: status})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Status: http.StatusBadRequest})
}
