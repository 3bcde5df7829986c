package handlers

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/application/adapters"
	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

const wallet = testutil.AliceAddress

// apiFixture wires every handler over in-memory doubles
type apiFixture struct {
	router   chi.Router
	store    *testutil.MockStore
	eth      *testutil.MockChainProvider
	answerer *testutil.MockAnswerer
}

func setupAPI(t *testing.T, withAnswerer bool) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	store := testutil.NewMockStore()
	snapshots := testutil.NewMockSnapshotRepository()
	memCache := cache.NewMemoryCache(time.Minute)

	eth := testutil.NewMockChainProvider(entities.ChainEthereum)
	eth.Balance = "3.0"
	eth.AddTransactions(
		testutil.EVMTransfer(2, wallet, testutil.USDCAddress, nil,
			testutil.ERC20Log(testutil.USDCAddress, wallet, testutil.BobAddress, big.NewInt(5000000))),
		testutil.EVMTransfer(1, testutil.BobAddress, wallet, testutil.OneEther),
	)
	registry := providers.NewRegistry(eth)

	tokens := services.NewTokenService(testutil.NewMockTokenRepository(), nil, memCache, time.Hour, logger)
	adapterRegistry := adapters.NewRegistry(
		adapters.NewEVMAdapter(tokens, adapters.DefaultDustThreshold, logger),
		adapters.NewSolanaAdapter(tokens, adapters.DefaultDustThreshold, logger),
	)

	ingestion, err := services.NewIngestionService(
		registry, adapterRegistry, tokens,
		store, store, testutil.NewMockSyncStateRepository(), memCache,
		config.IngestionConfig{
			BatchSize:      2,
			MaxPages:       10,
			EVMPageSize:    10,
			SolanaPageSize: 10,
			DustThreshold:  "0.000001",
			Timeout:        time.Minute,
		},
		logger,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	portfolio, err := services.NewPortfolioService(
		registry, ingestion, store, snapshots, memCache,
		config.PortfolioConfig{Chains: []string{"ethereum-mainnet"}, CacheTTL: time.Minute},
		logger,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var answerer providers.Answerer
	var mockAnswerer *testutil.MockAnswerer
	if withAnswerer {
		mockAnswerer = &testutil.MockAnswerer{Reply: "You received 1 ETH."}
		answerer = mockAnswerer
	}

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		NewTransactionHandler(services.NewTransactionService(ingestion, store, store, snapshots, memCache, logger), logger).RegisterRoutes(r)
		NewStatsHandler(services.NewStatsService(store, store, memCache, time.Minute, logger), logger).RegisterRoutes(r)
		NewTokenHandler(tokens, logger).RegisterRoutes(r)
		NewPortfolioHandler(portfolio, services.NewHoldingsService(portfolio, store, logger), logger).RegisterRoutes(r)
		NewAskHandler(services.NewAskService(answerer, store, store, 50, logger), logger).RegisterRoutes(r)
	})

	return &apiFixture{router: router, store: store, eth: eth, answerer: mockAnswerer}
}

func (f *apiFixture) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// ingest runs the detailed endpoint so later queries have stored rows
func (f *apiFixture) ingest(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/v1/transactions/ethereum-mainnet/"+wallet+"/detailed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d %s", rec.Code, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
