package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/services"
)

func TestMarketService_LoadCoins(t *testing.T) {
	client := &mockMarketClient{coins: testCoins()}
	svc := services.NewMarketService(client, newTestLogger())

	assert.Nil(t, svc.LoadedAt())

	coins, err := svc.LoadCoins(context.Background())
	require.NoError(t, err)
	assert.Len(t, coins, 3)
	assert.NotNil(t, svc.LoadedAt())

	coin, ok := svc.Coin("ethereum")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", coin.Name)

	symbols := svc.SymbolsFor([]string{"bitcoin", "unknown", "solana"})
	assert.Equal(t, map[string]string{"bitcoin": "BTC", "solana": "SOL"}, symbols)

	t.Run("failure keeps the previous list", func(t *testing.T) {
		client.coinsErr = domain.NewDomainError(domain.ErrMarketDataUnavailable, domain.MsgCoinsUnavailable, "MARKET_DATA_UNAVAILABLE")

		_, err := svc.LoadCoins(context.Background())
		require.Error(t, err)
		assert.Equal(t, domain.MsgCoinsUnavailable, err.Error())
		assert.Len(t, svc.Coins(), 3)
	})
}

func TestMarketService_Snapshot(t *testing.T) {
	client := &mockMarketClient{
		coins: testCoins(),
		snapshot: &domain.MarketSnapshot{
			CoinID:       "bitcoin",
			CurrentPrice: decimal.NewFromInt(50000),
		},
		lockRemaining: 4 * time.Second,
	}
	svc := services.NewMarketService(client, newTestLogger())
	_, err := svc.LoadCoins(context.Background())
	require.NoError(t, err)

	snap, err := svc.Snapshot(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", snap.Name)
	assert.Equal(t, "btc", snap.Symbol)
	assert.Equal(t, 4*time.Second, svc.LockRemaining())

	client.snapshotErr = domain.ErrMarketDataBusy
	_, err = svc.Snapshot(context.Background(), "bitcoin")
	assert.ErrorIs(t, err, domain.ErrMarketDataBusy)
}
