package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

var healthChains = []entities.Chain{entities.ChainEthereum, entities.ChainSolana}

func TestHealthHandler_Health_AllHealthy(t *testing.T) {
	db := testutil.NewMockHealthChecker(true)
	cache := testutil.NewMockHealthChecker(true)
	handler := NewHealthHandler(db, cache, healthChains, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Services["database"] != "healthy" {
		t.Errorf("expected database healthy, got %s", response.Services["database"])
	}
	if response.Services["cache"] != "healthy" {
		t.Errorf("expected cache healthy, got %s", response.Services["cache"])
	}
	if response.Services["ai"] != "enabled" {
		t.Errorf("expected ai enabled, got %s", response.Services["ai"])
	}
	if len(response.Chains) != 2 {
		t.Errorf("expected 2 chains, got %v", response.Chains)
	}
	if response.Timestamp == "" {
		t.Error("expected non-empty timestamp")
	}
}

func TestHealthHandler_Health_DatabaseUnhealthy(t *testing.T) {
	db := testutil.NewMockHealthChecker(false)
	handler := NewHealthHandler(db, testutil.NewMockHealthChecker(true), healthChains, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	var response HealthResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Status != "unhealthy" {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Services["ai"] != "disabled" {
		t.Errorf("expected ai disabled, got %s", response.Services["ai"])
	}
}

func TestHealthHandler_Health_CacheUnhealthy(t *testing.T) {
	db := testutil.NewMockHealthChecker(true)
	cache := testutil.NewMockHealthChecker(false)
	handler := NewHealthHandler(db, cache, healthChains, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	// A broken cache degrades the service but does not take it down
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for degraded, got %d", rec.Code)
	}

	var response HealthResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Status != "degraded" {
		t.Errorf("expected status degraded, got %s", response.Status)
	}
}

func TestHealthHandler_Health_NoCache(t *testing.T) {
	handler := NewHealthHandler(testutil.NewMockHealthChecker(true), nil, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)

	services, ok := response["services"].(map[string]interface{})
	if !ok {
		t.Fatal("services should be a map")
	}
	if _, exists := services["cache"]; exists {
		t.Error("cache should not be in services when nil")
	}
	if chains, ok := response["chains"].([]interface{}); !ok || len(chains) != 0 {
		t.Errorf("expected empty chains array, got %v", response["chains"])
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		dbHealthy  bool
		chains     []entities.Chain
		wantStatus int
	}{
		{"ready", true, healthChains, http.StatusOK},
		{"database down", false, healthChains, http.StatusServiceUnavailable},
		{"no chains", true, nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(testutil.NewMockHealthChecker(tt.dbHealthy), nil, tt.chains, false)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()

			handler.Ready(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != "ready" {
				t.Errorf("expected body 'ready', got '%s'", rec.Body.String())
			}
		})
	}
}

func TestHealthHandler_Live_AlwaysAlive(t *testing.T) {
	handler := NewHealthHandler(testutil.NewMockHealthChecker(false), nil, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()

	handler.Live(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alive" {
		t.Errorf("expected body 'alive', got '%s'", rec.Body.String())
	}
}
