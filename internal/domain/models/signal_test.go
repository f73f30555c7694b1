package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleSignal() *Signal {
	return &Signal{
		SignalID:     "sig-1",
		Symbol:       "NVDA",
		Action:       ActionBuy,
		EntryPrice:   decimal.NewFromFloat(118.40),
		TargetPrice:  decimal.NewFromFloat(125.00),
		StopPrice:    decimal.NewFromFloat(114.00),
		Confidence:   87.5,
		Strategy:     "momentum_v2",
		ServiceScope: []string{"equities", "paper"},
		Regime:       "trending",
		GeneratedAt:  time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
	}
}

func TestCanonicalHashIsOrderIndependent(t *testing.T) {
	a := sampleSignal()
	b := sampleSignal()
	b.ServiceScope = []string{"paper", "equities"}

	if a.CanonicalHash() != b.CanonicalHash() {
		t.Fatalf("scope order changed the hash")
	}
}

func TestCanonicalHashDetectsFieldChange(t *testing.T) {
	a := sampleSignal()
	b := sampleSignal()
	b.EntryPrice = decimal.NewFromFloat(118.41)

	if a.CanonicalHash() == b.CanonicalHash() {
		t.Fatalf("price change did not change the hash")
	}
}

func TestInScope(t *testing.T) {
	sig := sampleSignal()
	if !sig.InScope("equities") {
		t.Fatalf("expected equities in scope")
	}
	if sig.InScope("crypto") {
		t.Fatalf("crypto should be out of scope")
	}

	sig.ServiceScope = nil
	if !sig.InScope("crypto") {
		t.Fatalf("empty scope should match everything")
	}

	sig.ServiceScope = []string{ScopeAny}
	if !sig.InScope("crypto") {
		t.Fatalf("any scope should match everything")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		res  ExecutionResult
		want bool
	}{
		{"timeout", ExecutionResult{ErrorKind: KindTimeout}, true},
		{"connection", ExecutionResult{ErrorKind: KindConnectionError}, true},
		{"server error", ExecutionResult{ErrorKind: KindRemoteRejected, StatusCode: 503}, true},
		{"client error", ExecutionResult{ErrorKind: KindRemoteRejected, StatusCode: 400}, false},
		{"disabled", ExecutionResult{ErrorKind: KindDisabled}, false},
		{"success", ExecutionResult{Success: true}, false},
	}
	for _, tc := range cases {
		if got := tc.res.Retryable(); got != tc.want {
			t.Fatalf("%s: retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []SignalStatus{StatusExecuted, StatusExpired, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []SignalStatus{StatusPending, StatusSkipped} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
