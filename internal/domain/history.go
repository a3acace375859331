package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHistorySize is the number of live price points kept per session
const DefaultHistorySize = 30

// PricePoint is one live sample of every favorite's USD price, keyed by coin id
type PricePoint struct {
	Timestamp time.Time                  `json:"timestamp"`
	Label     string                     `json:"label"`
	Prices    map[string]decimal.Decimal `json:"prices"`
}

// NewPricePoint stamps prices with ts and its clock-time label
func NewPricePoint(ts time.Time, prices map[string]decimal.Decimal) PricePoint {
	return PricePoint{
		Timestamp: ts,
		Label:     ts.Format(time.TimeOnly),
		Prices:    prices,
	}
}

// PriceHistory is a bounded sequence of price points, oldest first.
// It is not safe for concurrent use.
type PriceHistory struct {
	max    int
	points []PricePoint
}

// NewPriceHistory creates a history holding at most max points
func NewPriceHistory(max int) *PriceHistory {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &PriceHistory{
		max:    max,
		points: make([]PricePoint, 0, max),
	}
}

// Append adds p as the newest point and drops the oldest beyond capacity
func (h *PriceHistory) Append(p PricePoint) {
	h.points = append(h.points, p)
	if over := len(h.points) - h.max; over > 0 {
		h.points = append(h.points[:0], h.points[over:]...)
	}
}

// Points returns a copy of the stored points, oldest first
func (h *PriceHistory) Points() []PricePoint {
	out := make([]PricePoint, len(h.points))
	for i, p := range h.points {
		p.Prices = maps.Clone(p.Prices)
		out[i] = p
	}
	return out
}

// Latest returns the newest point
func (h *PriceHistory) Latest() (PricePoint, bool) {
	if len(h.points) == 0 {
		return PricePoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// Len returns the number of stored points
func (h *PriceHistory) Len() int {
	return len(h.points)
}

// Cap returns the maximum number of points kept
func (h *PriceHistory) Cap() int {
	return h.max
}
