package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmitSignalRequest is the manual-injection payload on the ops API. The
// Kafka intake carries the same shape.
type SubmitSignalRequest struct {
	SignalID     string          `json:"signal_id"`
	Symbol       string          `json:"symbol" validate:"required"`
	Action       string          `json:"action" validate:"required,oneof=BUY SELL"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	StopPrice    decimal.Decimal `json:"stop_price"`
	Confidence   float64         `json:"confidence" validate:"gte=0,lte=100"`
	Strategy     string          `json:"strategy" default:"manual"`
	ServiceScope []string        `json:"service_scope"`
	Regime       string          `json:"regime"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// ToSignal converts the request into a domain signal.
func (r *SubmitSignalRequest) ToSignal() *Signal {
	return &Signal{
		SignalID:     r.SignalID,
		Symbol:       r.Symbol,
		Action:       Action(r.Action),
		EntryPrice:   r.EntryPrice,
		TargetPrice:  r.TargetPrice,
		StopPrice:    r.StopPrice,
		Confidence:   r.Confidence,
		Strategy:     r.Strategy,
		ServiceScope: r.ServiceScope,
		Regime:       r.Regime,
		GeneratedAt:  r.GeneratedAt,
	}
}

// CancelSignalRequest carries the operator's cancellation reason.
type CancelSignalRequest struct {
	Reason string `json:"reason" default:"cancelled by operator"`
}

// OutcomeRequest reports the realized exit of an executed signal.
type OutcomeRequest struct {
	ExitPrice     decimal.Decimal `json:"exit_price"`
	ProfitLossPct float64         `json:"profit_loss_pct"`
}

// SubmitSignalResponse echoes the recorded id and the fan-out results.
type SubmitSignalResponse struct {
	SignalID string             `json:"signal_id"`
	Hash     string             `json:"hash"`
	Status   SignalStatus       `json:"status"`
	Results  []*ExecutionResult `json:"results"`
}
