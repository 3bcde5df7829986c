package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

const maxAskBody = 16 << 10

// AskRequest is the body of POST /ai/ask
type AskRequest struct {
	Question string `json:"question"`
	Wallet   string `json:"wallet"`
	Chain    string `json:"chain,omitempty"`
}

// AskHandler handles natural-language questions about stored wallet data
type AskHandler struct {
	service *services.AskService
	logger  *zap.Logger
}

// NewAskHandler creates a new ask handler
func NewAskHandler(service *services.AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the ask route
func (h *AskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ai/ask", h.Ask)
}

// Ask handles POST /api/v1/ai/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var chain *entities.Chain
	if strings.TrimSpace(req.Chain) != "" {
		c, err := entities.ParseChain(req.Chain)
		if err != nil {
			respondServiceError(w, h.logger, "Ask", err)
			return
		}
		chain = &c
	}

	resp, err := h.service.Ask(r.Context(), req.Question, req.Wallet, chain)
	if err != nil {
		respondServiceError(w, h.logger, "Ask", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
