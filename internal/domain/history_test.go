package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

func TestPriceHistory_Append(t *testing.T) {
	t.Run("keeps at most thirty points dropping the oldest", func(t *testing.T) {
		h := domain.NewPriceHistory(domain.DefaultHistorySize)
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 31; i++ {
			h.Append(domain.NewPricePoint(start.Add(time.Duration(i)*time.Second), map[string]decimal.Decimal{
				"bitcoin": decimal.NewFromInt(int64(i)),
			}))
		}

		points := h.Points()
		require.Len(t, points, 30)
		assert.True(t, points[0].Prices["bitcoin"].Equal(decimal.NewFromInt(1)))
		assert.True(t, points[29].Prices["bitcoin"].Equal(decimal.NewFromInt(30)))
	})

	t.Run("non-positive size falls back to default", func(t *testing.T) {
		h := domain.NewPriceHistory(0)
		assert.Equal(t, domain.DefaultHistorySize, h.Cap())
	})

	t.Run("points are copies", func(t *testing.T) {
		h := domain.NewPriceHistory(3)
		h.Append(domain.NewPricePoint(time.Now(), map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(1)}))

		points := h.Points()
		points[0].Prices["bitcoin"] = decimal.NewFromInt(99)

		latest, ok := h.Latest()
		require.True(t, ok)
		assert.True(t, latest.Prices["bitcoin"].Equal(decimal.NewFromInt(1)))
	})
}

func TestNewPricePoint_Label(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	p := domain.NewPricePoint(ts, nil)
	assert.Equal(t, "14:05:07", p.Label)
}
