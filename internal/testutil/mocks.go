package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

var (
	_ repositories.EventRepository     = (*MockStore)(nil)
	_ repositories.SummaryRepository   = (*MockStore)(nil)
	_ repositories.SnapshotRepository  = (*MockSnapshotRepository)(nil)
	_ repositories.TokenRepository     = (*MockTokenRepository)(nil)
	_ repositories.SyncStateRepository = (*MockSyncStateRepository)(nil)
	_ providers.ChainProvider          = (*MockChainProvider)(nil)
	_ providers.MetadataSource         = (*MockMetadataSource)(nil)
	_ providers.Answerer               = (*MockAnswerer)(nil)
)

type storeKey struct {
	wallet  string
	chain   entities.Chain
	txID    string
	assetID string
}

type summaryKey struct {
	wallet  string
	chain   entities.Chain
	assetID string
}

// MockStore is an in-memory event and summary store with the same upsert
// and folding semantics as the Postgres repositories
type MockStore struct {
	mu        sync.RWMutex
	events    map[storeKey]entities.TransferEvent
	summaries map[summaryKey]entities.TokenSummary
	nextID    int64

	// Function hooks for custom behavior
	UpsertEventsFunc func(ctx context.Context, events []entities.TransferEvent) error
	QueryEventsFunc  func(ctx context.Context, wallet string, chain entities.Chain, q entities.EventQuery) ([]entities.TransferEvent, error)
	RecomputeFunc    func(ctx context.Context, wallet string, chain entities.Chain, assetID string) error

	// Call tracking
	Calls []MockCall
}

func NewMockStore() *MockStore {
	return &MockStore{
		events:    make(map[storeKey]entities.TransferEvent),
		summaries: make(map[summaryKey]entities.TokenSummary),
		Calls:     make([]MockCall, 0),
	}
}

func (m *MockStore) track(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// CallCount returns how many times method was called
func (m *MockStore) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockStore) UpsertEvent(ctx context.Context, event *entities.TransferEvent) error {
	return m.UpsertEvents(ctx, []entities.TransferEvent{*event})
}

func (m *MockStore) UpsertEvents(ctx context.Context, events []entities.TransferEvent) error {
	m.track("UpsertEvents", len(events))
	if m.UpsertEventsFunc != nil {
		if err := m.UpsertEventsFunc(ctx, events); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		k := storeKey{e.Wallet, e.Chain, e.TransactionID, e.AssetID}
		if prev, ok := m.events[k]; ok {
			e.ID = prev.ID
			e.CreatedAt = prev.CreatedAt
		} else {
			m.nextID++
			e.ID = m.nextID
			e.CreatedAt = time.Now()
		}
		e.UpdatedAt = time.Now()
		m.events[k] = e
	}
	return nil
}

func (m *MockStore) QueryEvents(ctx context.Context, wallet string, chain entities.Chain, q entities.EventQuery) ([]entities.TransferEvent, error) {
	m.track("QueryEvents", wallet, chain, q)
	if m.QueryEventsFunc != nil {
		return m.QueryEventsFunc(ctx, wallet, chain, q)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	text := strings.ToLower(q.SearchText)
	result := make([]entities.TransferEvent, 0)
	for k, e := range m.events {
		if k.wallet != wallet || k.chain != chain {
			continue
		}
		if q.AssetID != "" && e.AssetID != q.AssetID {
			continue
		}
		if q.Symbol != "" && !strings.EqualFold(e.AssetSymbol, q.Symbol) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(e.AssetSymbol), text) && !strings.Contains(strings.ToLower(e.AssetName), text) {
			continue
		}
		result = append(result, e)
	}

	sortNewestFirst(result)
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// sortNewestFirst orders by observed_at desc with nulls last, then id desc
func sortNewestFirst(events []entities.TransferEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i].ObservedAt, events[j].ObservedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return events[i].ID > events[j].ID
	})
}

func (m *MockStore) HasEvents(ctx context.Context, wallet string, chain entities.Chain) (bool, error) {
	m.track("HasEvents", wallet, chain)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for k := range m.events {
		if k.wallet == wallet && k.chain == chain {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) GetByTransaction(ctx context.Context, chain entities.Chain, transactionID string) ([]entities.TransferEvent, error) {
	m.track("GetByTransaction", chain, transactionID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.TransferEvent, 0)
	for k, e := range m.events {
		if k.chain == chain && k.txID == transactionID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockStore) GetStats(ctx context.Context, wallet string, chain entities.Chain) (*repositories.EventStats, error) {
	m.track("GetStats", wallet, chain)

	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &repositories.EventStats{}
	txs := make(map[string]struct{})
	for k, e := range m.events {
		if k.wallet != wallet || k.chain != chain {
			continue
		}
		stats.TotalEvents++
		txs[e.TransactionID] = struct{}{}
		switch e.Direction {
		case entities.DirectionReceive:
			stats.Received++
		case entities.DirectionSend:
			stats.Sent++
		default:
			stats.Unknown++
		}
		if e.Status == entities.StatusFailed {
			stats.Failed++
		}
		if e.ObservedAt != nil {
			if stats.FirstTransferAt == nil || e.ObservedAt.Before(*stats.FirstTransferAt) {
				stats.FirstTransferAt = e.ObservedAt
			}
			if stats.LastTransferAt == nil || e.ObservedAt.After(*stats.LastTransferAt) {
				stats.LastTransferAt = e.ObservedAt
			}
		}
	}
	stats.Transactions = int64(len(txs))
	return stats, nil
}

func (m *MockStore) Clear(ctx context.Context, wallet string, chain *entities.Chain) (int64, error) {
	m.track("Clear", wallet, chain)

	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for k := range m.events {
		if k.wallet == wallet && (chain == nil || k.chain == *chain) {
			delete(m.events, k)
			deleted++
		}
	}
	for k := range m.summaries {
		if k.wallet == wallet && (chain == nil || k.chain == *chain) {
			delete(m.summaries, k)
		}
	}
	return deleted, nil
}

func (m *MockStore) RecomputeSummary(ctx context.Context, wallet string, chain entities.Chain, assetID, symbol, name string) (*entities.TokenSummary, error) {
	m.track("RecomputeSummary", wallet, chain, assetID)
	if m.RecomputeFunc != nil {
		if err := m.RecomputeFunc(ctx, wallet, chain, assetID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	received, sent, balance := decimal.Zero, decimal.Zero, decimal.Zero
	summary := entities.TokenSummary{
		Wallet:      wallet,
		Chain:       chain,
		AssetID:     assetID,
		AssetSymbol: symbol,
		AssetName:   name,
		UpdatedAt:   time.Now(),
	}
	for k, e := range m.events {
		if k.wallet != wallet || k.chain != chain || k.assetID != assetID {
			continue
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", e.Amount, err)
		}
		if amount.IsPositive() {
			received = received.Add(amount)
		} else {
			sent = sent.Add(amount.Abs())
		}
		balance = balance.Add(amount)
		summary.TransactionCount++
		if e.ObservedAt != nil {
			if summary.FirstTransactionAt == nil || e.ObservedAt.Before(*summary.FirstTransactionAt) {
				summary.FirstTransactionAt = e.ObservedAt
			}
			if summary.LastTransactionAt == nil || e.ObservedAt.After(*summary.LastTransactionAt) {
				summary.LastTransactionAt = e.ObservedAt
			}
		}
	}
	summary.TotalReceived = entities.FormatAmount(received)
	summary.TotalSent = entities.FormatAmount(sent)
	summary.CurrentBalance = entities.FormatAmount(balance)

	m.summaries[summaryKey{wallet, chain, assetID}] = summary
	return &summary, nil
}

func (m *MockStore) GetSummaries(ctx context.Context, wallet string, chain entities.Chain) ([]entities.TokenSummary, error) {
	m.track("GetSummaries", wallet, chain)

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.TokenSummary, 0)
	for k, s := range m.summaries {
		if k.wallet == wallet && k.chain == chain {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, _ := decimal.NewFromString(result[i].CurrentBalance)
		b, _ := decimal.NewFromString(result[j].CurrentBalance)
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result, nil
}

func (m *MockStore) GetSummary(ctx context.Context, wallet string, chain entities.Chain, assetID string) (*entities.TokenSummary, error) {
	m.track("GetSummary", wallet, chain, assetID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[summaryKey{wallet, chain, assetID}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// AddEvents seeds events without call tracking
func (m *MockStore) AddEvents(events ...entities.TransferEvent) {
	_ = m.UpsertEvents(context.Background(), events)
	m.mu.Lock()
	m.Calls = m.Calls[:len(m.Calls)-1]
	m.mu.Unlock()
}

// Events returns every stored event ordered by natural key
func (m *MockStore) Events() []entities.TransferEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.TransferEvent, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TransactionID != result[j].TransactionID {
			return result[i].TransactionID < result[j].TransactionID
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// Summaries returns every stored summary ordered by asset id
func (m *MockStore) Summaries() []entities.TokenSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.TokenSummary, 0, len(m.summaries))
	for _, s := range m.summaries {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssetID < result[j].AssetID })
	return result
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]entities.PortfolioSnapshot

	PutFunc func(ctx context.Context, snapshot *entities.PortfolioSnapshot) error

	Calls []MockCall
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{
		snapshots: make(map[string]entities.PortfolioSnapshot),
		Calls:     make([]MockCall, 0),
	}
}

func (m *MockSnapshotRepository) Get(ctx context.Context, wallet string) (*entities.PortfolioSnapshot, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{wallet}})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[wallet]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockSnapshotRepository) Put(ctx context.Context, snapshot *entities.PortfolioSnapshot) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Put", Args: []interface{}{snapshot.Wallet}})
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, snapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Wallet] = *snapshot
	return nil
}

func (m *MockSnapshotRepository) Delete(ctx context.Context, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "Delete", Args: []interface{}{wallet}})
	delete(m.snapshots, wallet)
	return nil
}

// MockTokenRepository is a mock implementation of TokenRepository
type MockTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]entities.TokenMetadata

	GetFunc func(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error)

	Calls []MockCall
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{
		tokens: make(map[string]entities.TokenMetadata),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockTokenRepository) Get(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{chain, address}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, chain, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[string(chain)+":"+address]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockTokenRepository) Upsert(ctx context.Context, token *entities.TokenMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{token}})
	m.tokens[string(token.Chain)+":"+token.Address] = *token
	return nil
}

// AddToken seeds a token without call tracking
func (m *MockTokenRepository) AddToken(token entities.TokenMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[string(token.Chain)+":"+token.Address] = token
}

// MockSyncStateRepository is a mock implementation of SyncStateRepository
type MockSyncStateRepository struct {
	mu     sync.RWMutex
	states map[string]entities.SyncState

	Calls []MockCall
}

func NewMockSyncStateRepository() *MockSyncStateRepository {
	return &MockSyncStateRepository{
		states: make(map[string]entities.SyncState),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockSyncStateRepository) Get(ctx context.Context, wallet string, chain entities.Chain) (*entities.SyncState, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{wallet, chain}})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[string(chain)+":"+wallet]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockSyncStateRepository) Upsert(ctx context.Context, state *entities.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{state}})
	m.states[string(state.Chain)+":"+state.Wallet] = *state
	return nil
}

func (m *MockSyncStateRepository) Delete(ctx context.Context, wallet string, chain *entities.Chain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "Delete", Args: []interface{}{wallet, chain}})
	for k, st := range m.states {
		if st.Wallet == wallet && (chain == nil || st.Chain == *chain) {
			delete(m.states, k)
		}
	}
	return nil
}

// MockChainProvider serves a fixed newest-first transaction history in pages
type MockChainProvider struct {
	mu sync.Mutex

	ChainID entities.Chain
	History []entities.TransactionRef
	Details map[string]*entities.RawTransaction
	Balance string

	ListErr    error
	BalanceErr error
	// DetailErrs fails GetTransactionDetail for specific ids
	DetailErrs map[string]error

	ListCalls    int
	DetailCalls  int
	BalanceCalls int
}

func NewMockChainProvider(chain entities.Chain) *MockChainProvider {
	return &MockChainProvider{
		ChainID:    chain,
		Details:    make(map[string]*entities.RawTransaction),
		DetailErrs: make(map[string]error),
		Balance:    "0",
	}
}

// AddTransactions appends raw transactions to the history, newest first
func (m *MockChainProvider) AddTransactions(txs ...*entities.RawTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.History = append(m.History, entities.TransactionRef{
			ID:          tx.ID,
			SequenceRef: tx.SequenceRef,
			ObservedAt:  tx.ObservedAt,
		})
		m.Details[tx.ID] = tx
	}
}

// Prepend adds transactions newer than everything already listed
func (m *MockChainProvider) Prepend(txs ...*entities.RawTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]entities.TransactionRef, 0, len(txs))
	for _, tx := range txs {
		refs = append(refs, entities.TransactionRef{ID: tx.ID, SequenceRef: tx.SequenceRef, ObservedAt: tx.ObservedAt})
		m.Details[tx.ID] = tx
	}
	m.History = append(refs, m.History...)
}

func (m *MockChainProvider) Chain() entities.Chain {
	return m.ChainID
}

func (m *MockChainProvider) GetNativeBalance(ctx context.Context, address string) (*entities.NativeBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BalanceCalls++
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	native := m.ChainID.Native()
	return &entities.NativeBalance{
		Chain:    m.ChainID,
		Balance:  m.Balance,
		Symbol:   native.Symbol,
		Name:     native.Name,
		Decimals: native.Decimals,
	}, nil
}

func (m *MockChainProvider) ListTransactionPage(ctx context.Context, address string, pageSize int, before string) (*entities.TransactionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := 0
	if before != "" {
		start = -1
		for i, ref := range m.History {
			if ref.ID == before {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("unknown marker %q", before)
		}
	}

	end := start + pageSize
	if end > len(m.History) {
		end = len(m.History)
	}
	page := &entities.TransactionPage{Items: append([]entities.TransactionRef(nil), m.History[start:end]...)}
	if end-start == pageSize && end < len(m.History) {
		page.NextBefore = m.History[end-1].ID
	}
	return page, nil
}

func (m *MockChainProvider) GetTransactionDetail(ctx context.Context, transactionID string) (*entities.RawTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetailCalls++
	if err, ok := m.DetailErrs[transactionID]; ok {
		return nil, err
	}
	tx, ok := m.Details[transactionID]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return tx, nil
}

// Counts returns the list, detail and balance call counts
func (m *MockChainProvider) Counts() (list, detail, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListCalls, m.DetailCalls, m.BalanceCalls
}

// MockMetadataSource serves token metadata from a map
type MockMetadataSource struct {
	mu sync.Mutex

	SourceName string
	Chains     []entities.Chain
	Tokens     map[string]entities.TokenMetadata
	Err        error
	Lookups    int
}

func NewMockMetadataSource(name string, chains ...entities.Chain) *MockMetadataSource {
	return &MockMetadataSource{
		SourceName: name,
		Chains:     chains,
		Tokens:     make(map[string]entities.TokenMetadata),
	}
}

func (m *MockMetadataSource) Name() string {
	return m.SourceName
}

func (m *MockMetadataSource) Supports(chain entities.Chain) bool {
	for _, c := range m.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

func (m *MockMetadataSource) Lookup(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tokens[address]
	if !ok {
		return nil, nil
	}
	t.Chain = chain
	t.Address = address
	t.Source = m.SourceName
	return &t, nil
}

// MockAnswerer records the last question and data it was given
type MockAnswerer struct {
	mu sync.Mutex

	Reply        string
	Err          error
	LastQuestion string
	LastData     []byte
}

func (m *MockAnswerer) Answer(ctx context.Context, question string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastQuestion = question
	m.LastData = append([]byte(nil), data...)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
