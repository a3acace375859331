package services_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newMockClock(start time.Time) *clock.Mock {
	mock := clock.NewMock()
	mock.Set(start)
	return mock
}

type mockStateStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	putErr error
	puts   int
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{data: make(map[string][]byte)}
}

func (m *mockStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return v, nil
}

func (m *mockStateStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockStateStore) Ping(ctx context.Context) error { return nil }

type mockMarketClient struct {
	coins         []domain.Coin
	coinsErr      error
	detail        *domain.PriceDetail
	detailErr     error
	snapshot      *domain.MarketSnapshot
	snapshotErr   error
	snapshotCalls int
	lockRemaining time.Duration
}

func (m *mockMarketClient) FetchTopCoins(ctx context.Context) ([]domain.Coin, error) {
	return m.coins, m.coinsErr
}

func (m *mockMarketClient) FetchMoreInfo(ctx context.Context, id string) (*domain.PriceDetail, error) {
	return m.detail, m.detailErr
}

func (m *mockMarketClient) FetchMarketSnapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error) {
	m.snapshotCalls++
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	snap := *m.snapshot
	return &snap, nil
}

func (m *mockMarketClient) LockRemaining() time.Duration { return m.lockRemaining }

type mockQuoteClient struct {
	prices map[string]decimal.Decimal
	err    error
	calls  [][]string
}

func (m *mockQuoteClient) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	m.calls = append(m.calls, symbols)
	if m.err != nil {
		return nil, m.err
	}
	return m.prices, nil
}

type mockInference struct {
	configured bool
	text       string
	err        error
	prompts    []string
}

func (m *mockInference) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.text, m.err
}

func (m *mockInference) Model() string    { return "test-model" }
func (m *mockInference) Configured() bool { return m.configured }

type staticFavorites []string

func (f staticFavorites) IDs() []string { return append([]string(nil), f...) }

func (f staticFavorites) Contains(id string) bool {
	for _, v := range f {
		if v == id {
			return true
		}
	}
	return false
}

type staticSymbols map[string]string

func (s staticSymbols) SymbolsFor(ids []string) map[string]string {
	out := make(map[string]string)
	for _, id := range ids {
		if sym, ok := s[id]; ok {
			out[id] = sym
		}
	}
	return out
}

func testCoins() []domain.Coin {
	return []domain.Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: decimal.NewFromInt(50000)},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: decimal.NewFromInt(3000)},
		{ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: decimal.NewFromInt(100)},
	}
}
