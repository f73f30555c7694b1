package models

import "time"

// IntegrityReport is the result of one ledger hash verification pass.
type IntegrityReport struct {
	Success         bool      `json:"success"`
	Full            bool      `json:"full"`
	Total           int       `json:"total"`
	Checked         int       `json:"checked"`
	Failed          int       `json:"failed"`
	FailedSignals   []string  `json:"failed_signals,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	ThroughputPerS  float64   `json:"throughput_per_second"`
	RanAt           time.Time `json:"ran_at"`
}

// LedgerStats aggregates signal outcomes since a point in time.
type LedgerStats struct {
	Since      time.Time            `json:"since"`
	Total      int                  `json:"total"`
	ByStatus   map[SignalStatus]int `json:"by_status"`
	Wins       int                  `json:"wins"`
	Losses     int                  `json:"losses"`
	WinRatePct float64              `json:"win_rate_pct"`
}
