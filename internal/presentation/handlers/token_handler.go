package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// TokenHandler handles HTTP requests for token metadata
type TokenHandler struct {
	service *services.TokenService
	logger  *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *services.TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the token routes
func (h *TokenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tokens/{chain}/{assetId}", h.GetToken)
}

// GetToken handles GET /api/v1/tokens/{chain}/{assetId}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Resolve token", err)
		return
	}

	assetID := chi.URLParam(r, "assetId")
	if assetID != entities.NativeAssetID {
		if err := chain.ValidateAddress(assetID); err != nil {
			respondServiceError(w, h.logger, "Resolve token", err)
			return
		}
	}

	meta, err := h.service.Resolve(r.Context(), chain, assetID)
	if err != nil {
		respondServiceError(w, h.logger, "Resolve token", err)
		return
	}
	if meta == nil {
		respondError(w, http.StatusNotFound, "Token not found")
		return
	}

	respondJSON(w, http.StatusOK, meta)
}
