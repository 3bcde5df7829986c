package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/services"
)

// PortfolioHandler handles HTTP requests for cross-chain wallet portfolios
type PortfolioHandler struct {
	portfolio *services.PortfolioService
	holdings  *services.HoldingsService
	logger    *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(portfolio *services.PortfolioService, holdings *services.HoldingsService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		holdings:  holdings,
		logger:    logger,
	}
}

// RegisterRoutes registers the portfolio routes on a chi router
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio/{address}", func(r chi.Router) {
		r.Get("/", h.GetPortfolio)
		r.Get("/summary", h.GetSummary)
		r.Get("/owns/{symbol}", h.OwnsToken)
		r.Get("/token/{symbol}/history", h.GetTokenHistory)
		r.Post("/refresh", h.Refresh)
	})
}

// GetPortfolio handles GET /api/v1/portfolio/{address}
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, queryBool(r, "forceRefresh"))
}

// Refresh handles POST /api/v1/portfolio/{address}/refresh
func (h *PortfolioHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, true)
}

func (h *PortfolioHandler) snapshot(w http.ResponseWriter, r *http.Request, force bool) {
	snapshot, err := h.portfolio.GetSnapshot(r.Context(), chi.URLParam(r, "address"), force)
	if err != nil {
		respondServiceError(w, h.logger, "Get portfolio", err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// GetSummary handles GET /api/v1/portfolio/{address}/summary
func (h *PortfolioHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.portfolio.Summary(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		respondServiceError(w, h.logger, "Get portfolio summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// OwnsToken handles GET /api/v1/portfolio/{address}/owns/{symbol}
func (h *PortfolioHandler) OwnsToken(w http.ResponseWriter, r *http.Request) {
	result, err := h.holdings.OwnsToken(r.Context(), chi.URLParam(r, "address"), chi.URLParam(r, "symbol"))
	if err != nil {
		respondServiceError(w, h.logger, "Check token ownership", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetTokenHistory handles GET /api/v1/portfolio/{address}/token/{symbol}/history
func (h *PortfolioHandler) GetTokenHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.holdings.TokenHistory(r.Context(), chi.URLParam(r, "address"), chi.URLParam(r, "symbol"))
	if err != nil {
		respondServiceError(w, h.logger, "Get token history", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
