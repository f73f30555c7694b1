package models

import "time"

// JournalEntry is one line of the append-only recovery log. Every ledger
// write mirrors one entry; the flat field set is the disaster-recovery
// contract and stays stable even if SignalRecord grows.
type JournalEntry struct {
	Event         string    `json:"event"`
	SignalID      string    `json:"signal_id"`
	Symbol        string    `json:"symbol"`
	Action        string    `json:"action"`
	EntryPrice    string    `json:"entry_price"`
	TargetPrice   string    `json:"target_price"`
	StopPrice     string    `json:"stop_price"`
	Confidence    float64   `json:"confidence"`
	Strategy      string    `json:"strategy"`
	ServiceScope  []string  `json:"service_scope"`
	Timestamp     time.Time `json:"timestamp"`
	Outcome       string    `json:"outcome,omitempty"`
	ExitPrice     string    `json:"exit_price,omitempty"`
	ProfitLossPct float64   `json:"profit_loss_pct,omitempty"`
	Hash          string    `json:"hash"`
	OrderID       string    `json:"order_id,omitempty"`
}

// JournalEntryFor flattens a record into its journal line.
func JournalEntryFor(event string, rec *SignalRecord) *JournalEntry {
	e := &JournalEntry{
		Event:         event,
		SignalID:      rec.SignalID,
		Symbol:        rec.Symbol,
		Action:        string(rec.Action),
		EntryPrice:    rec.EntryPrice.String(),
		TargetPrice:   rec.TargetPrice.String(),
		StopPrice:     rec.StopPrice.String(),
		Confidence:    rec.Confidence,
		Strategy:      rec.Strategy,
		ServiceScope:  rec.ServiceScope,
		Timestamp:     time.Now().UTC(),
		Outcome:       string(rec.Status),
		ProfitLossPct: rec.ProfitLossPct,
		Hash:          rec.Hash,
		OrderID:       rec.OrderID,
	}
	if !rec.ExitPrice.IsZero() {
		e.ExitPrice = rec.ExitPrice.String()
	}
	return e
}
