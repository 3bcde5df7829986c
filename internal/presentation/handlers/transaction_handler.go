package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// TransactionHandler serves per-wallet, per-chain transaction endpoints
type TransactionHandler struct {
	service *services.TransactionService
	logger  *zap.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *services.TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the transaction routes
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/transactions/{chain}/tx/{hash}", h.GetByTransaction)
	r.Get("/transactions/{chain}/{address}/detailed", h.GetDetailed)
	r.Get("/transactions/{chain}/{address}/token/{tokenAddress}", h.GetByToken)
	r.Get("/transactions/{chain}/{address}/search", h.Search)
	r.Get("/transactions/{chain}/{address}/tokens", h.GetTokens)
	r.Delete("/transactions/{chain}/{address}/cache", h.ClearCache)
}

// GetDetailed handles GET /transactions/{chain}/{address}/detailed
func (h *TransactionHandler) GetDetailed(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Fetch transactions", err)
		return
	}
	address := chi.URLParam(r, "address")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondServiceError(w, h.logger, "Fetch transactions", err)
		return
	}
	force := queryBool(r, "forceRefresh")

	result, err := h.service.FetchDetailed(r.Context(), address, chain, limit, force)
	if err != nil {
		respondServiceError(w, h.logger, "Fetch transactions", err)
		return
	}
	if !result.Success {
		h.logger.Warn("Ingestion did not complete",
			zap.String("chain", chain.String()),
			zap.String("wallet", result.Wallet),
			zap.String("error", result.Error),
		)
		respondJSON(w, http.StatusBadGateway, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByToken handles GET /transactions/{chain}/{address}/token/{tokenAddress}
func (h *TransactionHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Get token transactions", err)
		return
	}

	resp, err := h.service.ByToken(r.Context(), chi.URLParam(r, "address"), chain, chi.URLParam(r, "tokenAddress"))
	if err != nil {
		respondServiceError(w, h.logger, "Get token transactions", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Search handles GET /transactions/{chain}/{address}/search?q=
func (h *TransactionHandler) Search(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Search transactions", err)
		return
	}

	resp, err := h.service.Search(r.Context(), chi.URLParam(r, "address"), chain, r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, h.logger, "Search transactions", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetTokens handles GET /transactions/{chain}/{address}/tokens
func (h *TransactionHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Get token summaries", err)
		return
	}

	resp, err := h.service.Summaries(r.Context(), chi.URLParam(r, "address"), chain)
	if err != nil {
		respondServiceError(w, h.logger, "Get token summaries", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetByTransaction handles GET /transactions/{chain}/tx/{hash}
func (h *TransactionHandler) GetByTransaction(w http.ResponseWriter, r *http.Request) {
	chain, err := chainParam(r)
	if err != nil {
		respondServiceError(w, h.logger, "Get transaction", err)
		return
	}

	events, err := h.service.ByTransactionID(r.Context(), chain, chi.URLParam(r, "hash"))
	if err != nil {
		respondServiceError(w, h.logger, "Get transaction", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chain":  chain,
		"events": events,
		"count":  len(events),
	})
}

// ClearCache handles DELETE /transactions/{chain}/{address}/cache.
// The chain segment "all" clears every chain.
func (h *TransactionHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var chain *entities.Chain
	if raw := chi.URLParam(r, "chain"); raw != "all" {
		c, err := entities.ParseChain(raw)
		if err != nil {
			respondServiceError(w, h.logger, "Clear cache", err)
			return
		}
		chain = &c
	}

	result, err := h.service.Clear(r.Context(), chi.URLParam(r, "address"), chain)
	if err != nil {
		respondServiceError(w, h.logger, "Clear cache", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
