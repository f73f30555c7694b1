package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SigRelay/internal/domain/models"
	applogger "SigRelay/pkg/logger"
)

// SignalIntake consumes generated signals from the intake topic and drives
// them through the ledger and the distributor. Implements
// kafka.MessageHandler.
type SignalIntake struct {
	ledger      *Ledger
	distributor *Distributor
	topic       string
	logger      *applogger.Logger
}

// NewSignalIntake creates the intake handler for the given topic.
func NewSignalIntake(ledger *Ledger, distributor *Distributor, topic string, lgr *applogger.Logger) *SignalIntake {
	return &SignalIntake{ledger: ledger, distributor: distributor, topic: topic, logger: lgr}
}

func (h *SignalIntake) Topic() string { return h.topic }

// Handle decodes one signal message, records it and fans it out. A replayed
// duplicate acknowledges without redistribution.
func (h *SignalIntake) Handle(ctx context.Context, data []byte) error {
	var sig models.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}
	if sig.Symbol == "" || sig.Action == "" {
		return fmt.Errorf("invalid signal: symbol and action are required")
	}

	if _, err := h.ledger.Record(ctx, &sig); err != nil {
		if errors.Is(err, models.ErrDuplicateSignal) {
			return nil
		}
		return err
	}

	if _, err := h.distributor.Distribute(ctx, &sig); err != nil {
		h.logger.Error("distribution failed",
			applogger.String("signal_id", sig.SignalID),
			applogger.Error(err))
		return err
	}
	return nil
}
