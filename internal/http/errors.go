package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/router"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognised
// is a 500 and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Details: ve.Problems})
	case errors.Is(err, domain.ErrListingNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, router.ErrClusterNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "cluster_not_found"})
	case errors.Is(err, domain.ErrCatalogUnavailable):
		zap.L().Warn("http: catalog unavailable", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog_unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "timeout"})
	case errors.Is(err, context.Canceled):
		// The client is gone; nobody reads this.
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		zap.L().Error("http: unhandled error", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}
