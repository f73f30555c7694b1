package service

import (
	"context"

	"SigRelay/internal/domain/models"
)

// Executor is one remote execution endpoint. Execute never returns a Go
// error: every failure mode is folded into the ExecutionResult so the
// distributor can treat all executors uniformly.
type Executor interface {
	ID() string
	Execute(ctx context.Context, sig *models.Signal) *models.ExecutionResult
	Status(ctx context.Context) (*models.ExecutorStatus, error)
}

// AccountSink receives equity readings and position-change events from an
// executor's trade-confirmation path. Implemented by the risk monitor.
type AccountSink interface {
	UpdateEquity(ctx context.Context, executorID string, equity float64)
	RecordPositionChange(ctx context.Context, executorID string, ev PositionChange)
}

// PositionChange is one fill confirmation from an executor account stream.
type PositionChange struct {
	Symbol      string
	Group       string
	Opened      bool
	Value       float64
	BuyingPower float64
}
