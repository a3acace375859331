package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/services"
)

type fixedActivity bool

func (a fixedActivity) Active() bool { return bool(a) }

type fixedHistory int

func (h fixedHistory) HistoryLen() int { return int(h) }

func TestMetricsService_GetMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := services.NewMetricsService(newTestLogger())

	m, err := metrics.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, m.LoadedCoins)
	assert.Nil(t, m.LastPollTime)

	client := &mockMarketClient{coins: testCoins(), lockRemaining: 2500 * time.Millisecond}
	market := services.NewMarketService(client, newTestLogger())
	_, err = market.LoadCoins(ctx)
	require.NoError(t, err)

	metrics.Attach(market, staticFavorites{"bitcoin", "ethereum"}, fixedHistory(7), fixedActivity(true))
	metrics.RecordPollSuccess(120 * time.Millisecond)
	metrics.RecordPollError(80 * time.Millisecond)

	m, err = metrics.GetMetrics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, m.LoadedCoins)
	assert.NotNil(t, m.CoinsLoadedAt)
	assert.Equal(t, 2, m.Favorites)
	assert.Equal(t, 7, m.HistoryPoints)
	assert.True(t, m.PollerActive)
	assert.True(t, m.MarketDataLocked)
	assert.InDelta(t, 2.5, m.LockRemainingSecond, 0.001)
	assert.Equal(t, int64(1), m.PollSuccessCount)
	assert.Equal(t, int64(1), m.PollErrorCount)
	assert.Equal(t, float64(80), m.LastPollDuration)
	assert.NotNil(t, metrics.GetLastPollTime())
}
