package domain

import "time"

// Metrics represents operational metrics
type Metrics struct {
	Uptime              float64    `json:"uptime_seconds"`
	LoadedCoins         int        `json:"loaded_coins"`
	CoinsLoadedAt       *time.Time `json:"coins_loaded_at,omitempty"`
	Favorites           int        `json:"favorites"`
	HistoryPoints       int        `json:"history_points"`
	LastPollTime        *time.Time `json:"last_poll_time,omitempty"`
	LastPollDuration    float64    `json:"last_poll_duration_ms"`
	PollSuccessCount    int64      `json:"poll_success_count"`
	PollErrorCount      int64      `json:"poll_error_count"`
	MarketDataLocked    bool       `json:"market_data_locked"`
	LockRemainingSecond float64    `json:"lock_remaining_seconds"`
	PollerActive        bool       `json:"poller_active"`
}
