package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the trade direction of a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// SignalStatus is the lifecycle state of a recorded signal.
type SignalStatus string

const (
	StatusPending   SignalStatus = "PENDING"
	StatusExecuted  SignalStatus = "EXECUTED"
	StatusSkipped   SignalStatus = "SKIPPED"
	StatusExpired   SignalStatus = "EXPIRED"
	StatusCancelled SignalStatus = "CANCELLED"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s SignalStatus) Terminal() bool {
	switch s {
	case StatusExecuted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// ScopeAny matches every executor family.
const ScopeAny = "any"

// Signal is one externally produced trading decision. Identity fields never
// mutate once the ledger has recorded them; lifecycle state lives on
// SignalRecord.
type Signal struct {
	SignalID     string          `json:"signal_id"`
	Symbol       string          `json:"symbol"`
	Action       Action          `json:"action"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	StopPrice    decimal.Decimal `json:"stop_price"`
	Confidence   float64         `json:"confidence"`
	Strategy     string          `json:"strategy"`
	ServiceScope []string        `json:"service_scope"`
	Regime       string          `json:"regime,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// InScope reports whether the signal may be routed to the given executor
// family. An empty scope or the "any" marker matches everything.
func (s *Signal) InScope(family string) bool {
	if len(s.ServiceScope) == 0 {
		return true
	}
	for _, scope := range s.ServiceScope {
		if scope == ScopeAny || strings.EqualFold(scope, family) {
			return true
		}
	}
	return false
}

// CanonicalString serializes the identity fields in a stable,
// order-independent form: sorted key=value pairs joined with "|".
func (s *Signal) CanonicalString() string {
	scope := append([]string(nil), s.ServiceScope...)
	sort.Strings(scope)

	pairs := []string{
		"action=" + string(s.Action),
		"confidence=" + fmt.Sprintf("%g", s.Confidence),
		"entry_price=" + s.EntryPrice.String(),
		"generated_at=" + fmt.Sprintf("%d", s.GeneratedAt.UTC().Unix()),
		"regime=" + s.Regime,
		"service_scope=" + strings.Join(scope, ","),
		"signal_id=" + s.SignalID,
		"stop_price=" + s.StopPrice.String(),
		"strategy=" + s.Strategy,
		"symbol=" + s.Symbol,
		"target_price=" + s.TargetPrice.String(),
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// CanonicalHash is the SHA-256 digest of CanonicalString, hex-encoded.
// The ledger stores it at write time; the integrity monitor recomputes it.
func (s *Signal) CanonicalHash() string {
	sum := sha256.Sum256([]byte(s.CanonicalString()))
	return hex.EncodeToString(sum[:])
}

// SignalRecord is the ledger's view of a signal: immutable identity plus
// lifecycle and execution state.
type SignalRecord struct {
	Signal

	Status        SignalStatus       `json:"status"`
	StatusReason  string             `json:"status_reason,omitempty"`
	Hash          string             `json:"hash"`
	OrderID       string             `json:"order_id,omitempty"`
	Outcome       string             `json:"outcome,omitempty"`
	ExitPrice     decimal.Decimal    `json:"exit_price,omitempty"`
	ProfitLossPct float64            `json:"profit_loss_pct,omitempty"`
	Executions    []*ExecutionResult `json:"executions,omitempty"`
	RecordedAt    time.Time          `json:"recorded_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	// GenLatency is how long the signal sat between generation and
	// ledger persistence.
	GenLatency time.Duration `json:"gen_latency_ns"`
}

// ExecutionResult is the outcome of one delivery attempt to one executor.
type ExecutionResult struct {
	ExecutorID string        `json:"executor_id"`
	Success    bool          `json:"success"`
	OrderID    string        `json:"order_id,omitempty"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	At         time.Time     `json:"at"`
}

// Retryable reports whether the failure should be handed to the retry queue.
// Permanent rejections (4xx, ineligibility, kill-switch) are not retried.
func (r *ExecutionResult) Retryable() bool {
	if r.Success {
		return false
	}
	switch r.ErrorKind {
	case KindTimeout, KindConnectionError:
		return true
	case KindRemoteRejected:
		return r.StatusCode >= 500
	}
	return false
}

// ExecutorStatus is the health snapshot returned by an executor endpoint.
type ExecutorStatus struct {
	Status         string  `json:"status"`
	PositionsCount int     `json:"positions_count"`
	BuyingPower    float64 `json:"buying_power"`
	Equity         float64 `json:"equity"`
}
