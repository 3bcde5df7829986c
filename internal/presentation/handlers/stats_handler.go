package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
)

// StatsHandler handles HTTP requests for wallet transaction statistics
type StatsHandler struct {
	service *services.StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the stats route
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/transactions/{chain}/{address}/stats", h.GetTransactionStats)
}

// GetTransactionStats handles GET /api/v1/transactions/{chain}/{address}/stats
func (h *StatsHandler) GetTransactionStats(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Get transaction stats", err)
		return
	}

	stats, err := h.service.TransactionStats(r.Context(), chi.URLParam(r, "address"), chain)
	if err != nil {
		respondServiceError(w, h.logger, "Get transaction stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
