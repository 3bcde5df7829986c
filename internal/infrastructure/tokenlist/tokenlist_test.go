package tokenlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

const bonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestSource_Lookup(t *testing.T) {
	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte(`[{"address":"` + bonk + `","symbol":"Bonk","name":"Bonk","decimals":5}]`))
	}))
	defer server.Close()

	src := NewSource("jupiter", server.URL, entities.ChainSolana, time.Hour, zap.NewNop())

	meta, err := src.Lookup(context.Background(), entities.ChainSolana, bonk)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Bonk", meta.Symbol)
	assert.Equal(t, int32(5), meta.Decimals)
	assert.Equal(t, "jupiter", meta.Source)

	miss, err := src.Lookup(context.Background(), entities.ChainSolana, "So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Nil(t, miss)

	assert.Equal(t, int32(1), downloads.Load(), "list is downloaded once within ttl")

	other, err := src.Lookup(context.Background(), entities.ChainEthereum, bonk)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSource_WrappedListAndStaleServe(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"list","tokens":[{"address":"` + bonk + `","symbol":"Bonk","name":"Bonk","decimals":5}]}`))
	}))
	defer server.Close()

	src := NewSource("solana-list", server.URL, entities.ChainSolana, time.Nanosecond, zap.NewNop())

	meta, err := src.Lookup(context.Background(), entities.ChainSolana, bonk)
	require.NoError(t, err)
	require.NotNil(t, meta)

	fail.Store(true)
	meta, err = src.Lookup(context.Background(), entities.ChainSolana, bonk)
	require.NoError(t, err)
	require.NotNil(t, meta, "stale list is served when refresh fails")
}

func TestSource_DownloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := NewSource("jupiter", server.URL, entities.ChainSolana, time.Hour, zap.NewNop())
	_, err := src.Lookup(context.Background(), entities.ChainSolana, bonk)
	assert.Error(t, err)
}
