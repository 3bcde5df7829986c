package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

const maxLimit = 1000

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps service errors onto HTTP status codes.
// Internal failures are logged and hidden behind a generic message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrInvalidAddress),
		errors.Is(err, entities.ErrUnsupportedChain):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAnswererUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, entities.ErrUpstreamUnavailable):
		logger.Warn(op+" failed upstream", zap.Error(err))
		respondError(w, http.StatusBadGateway, "Upstream chain data is unavailable")
	default:
		logger.Error(op+" failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, op+" failed")
	}
}

func chainParam(r *http.Request) (entities.Chain, error) {
	return entities.ParseChain(chi.URLParam(r, "chain"))
}

// queryInt returns def when the parameter is missing and a validation error when it
// is not an integer in [1, maxLimit]
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxLimit {
		return 0, fmt.Errorf("%w: %s must be an integer between 1 and %d", entities.ErrValidation, name, maxLimit)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && b
}
