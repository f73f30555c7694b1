package models

import "time"

// RiskLevel escalates NORMAL -> WARNING -> CRITICAL -> BREACH. BREACH halts
// trading until an operator resets the account.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "NORMAL"
	RiskWarning  RiskLevel = "WARNING"
	RiskCritical RiskLevel = "CRITICAL"
	RiskBreach   RiskLevel = "BREACH"
)

// Severity orders levels for comparisons.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskWarning:
		return 1
	case RiskCritical:
		return 2
	case RiskBreach:
		return 3
	}
	return 0
}

// RiskState is the per-executor compliance snapshot. Only the risk monitor
// mutates it; everyone else sees copies.
type RiskState struct {
	ExecutorID     string    `json:"executor_id"`
	AccountEquity  float64   `json:"account_equity"`
	PeakEquity     float64   `json:"peak_equity"`
	DayStartEquity float64   `json:"day_start_equity"`
	DrawdownPct    float64   `json:"drawdown_pct"`
	DailyPnlPct    float64   `json:"daily_pnl_pct"`
	// OpenPositions maps symbol to its correlation group ("" if ungrouped).
	OpenPositions map[string]string `json:"open_positions"`
	GroupCounts   map[string]int    `json:"correlation_group_counts"`
	RiskLevel     RiskLevel         `json:"risk_level"`
	TradingHalted bool              `json:"trading_halted"`
	HaltReason    string            `json:"halt_reason,omitempty"`
	Day           string            `json:"day"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe to hand outside the monitor's lock.
func (s *RiskState) Clone() *RiskState {
	out := *s
	out.OpenPositions = make(map[string]string, len(s.OpenPositions))
	for k, v := range s.OpenPositions {
		out.OpenPositions[k] = v
	}
	out.GroupCounts = make(map[string]int, len(s.GroupCounts))
	for k, v := range s.GroupCounts {
		out.GroupCounts[k] = v
	}
	return &out
}
