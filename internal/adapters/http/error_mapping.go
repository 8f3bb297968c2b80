package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError keeps provider detail out of 5xx bodies; it is logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	resp := errorResponse{Error: http.StatusText(status)}
	if status < http.StatusInternalServerError {
		resp.Details = err.Error()
	} else {
		logRequestError(r, status, err)
	}
	writeJSON(w, status, resp)
}
