package handlers

import (
	"net/http"
	"testing"

	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

func TestPortfolioHandler_GetPortfolio(t *testing.T) {
	f := setupAPI(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/portfolio/"+wallet, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snapshot entities.PortfolioSnapshot
	decode(t, rec, &snapshot)

	eth, ok := snapshot.Chains[entities.ChainEthereum]
	if !ok {
		t.Fatalf("expected ethereum in snapshot, got %v", snapshot.Chains)
	}
	if eth.NativeBalance.Balance != "3.0" {
		t.Errorf("expected live balance 3.0, got %s", eth.NativeBalance.Balance)
	}
	if snapshot.Summary.TotalTransactions != 2 {
		t.Errorf("expected 2 transactions, got %d", snapshot.Summary.TotalTransactions)
	}

	_, _, balanceCalls := f.eth.Counts()

	// Cached snapshot does not touch the provider
	f.do(t, http.MethodGet, "/api/v1/portfolio/"+wallet, nil)
	if _, _, n := f.eth.Counts(); n != balanceCalls {
		t.Errorf("expected cached snapshot, balance calls went %d -> %d", balanceCalls, n)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/portfolio/"+wallet+"/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if _, _, n := f.eth.Counts(); n != balanceCalls+1 {
		t.Errorf("expected refresh to refetch the balance, calls %d -> %d", balanceCalls, n)
	}
}

func TestPortfolioHandler_Summary(t *testing.T) {
	f := setupAPI(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/portfolio/"+wallet+"/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var summary entities.PortfolioSummary
	decode(t, rec, &summary)
	if summary.TotalChains != 1 || summary.ReceivedCount != 1 || summary.SentCount != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.TotalReceived["ETH"] != "1.0" {
		t.Errorf("expected 1.0 ETH received, got %v", summary.TotalReceived)
	}
}

func TestPortfolioHandler_OwnsToken(t *testing.T) {
	f := setupAPI(t, false)

	tests := []struct {
		symbol string
		owns   bool
	}{
		{"eth", true},
		{"USDC", false},
		{"DOGE", false},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/portfolio/"+wallet+"/owns/"+tt.symbol, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			var result services.OwnershipResult
			decode(t, rec, &result)
			if result.Owns != tt.owns {
				t.Errorf("expected owns=%v, got %+v", tt.owns, result)
			}
		})
	}
}

func TestPortfolioHandler_TokenHistory(t *testing.T) {
	f := setupAPI(t, false)
	f.ingest(t)

	rec := f.do(t, http.MethodGet, "/api/v1/portfolio/"+wallet+"/token/usdc/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var result services.TokenHistoryResult
	decode(t, rec, &result)
	if result.Count != 1 || result.Events[0].AssetID != testutil.USDCAddress {
		t.Errorf("expected the USDC event, got %+v", result)
	}
}

func TestPortfolioHandler_InvalidAddress(t *testing.T) {
	f := setupAPI(t, false)

	for _, path := range []string{
		"/api/v1/portfolio/not-an-address",
		"/api/v1/portfolio/not-an-address/summary",
		"/api/v1/portfolio/0x12/owns/ETH",
	} {
		rec := f.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, rec.Code)
		}
	}
}

func TestPortfolioHandler_NoUsableChain(t *testing.T) {
	f := setupAPI(t, false)

	// Solana is not in the configured portfolio chains
	rec := f.do(t, http.MethodGet, "/api/v1/portfolio/"+testutil.SolanaWallet, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
