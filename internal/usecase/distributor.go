package usecase

import (
	"context"
	"strings"
	"sync"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	domsvc "SigRelay/internal/domain/service"
	applogger "SigRelay/pkg/logger"
)

// Enqueuer hands a failed (signal, executor) pair to the retry queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, signalID, executorID string) error
}

// ExecutorBinding pairs an executor's routing profile with its client.
type ExecutorBinding struct {
	Profile *models.ExecutorProfile
	Client  domsvc.Executor
}

// Distributor fans a recorded signal out to every eligible executor
// concurrently. It is stateless: all state flows through the ledger, the
// risk monitor and the retry queue.
type Distributor struct {
	ledger   *Ledger
	risk     *RiskMonitor
	queue    Enqueuer
	bindings []ExecutorBinding // registration order
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

// NewDistributor creates the distributor. Binding order is the reporting
// order of Distribute results.
func NewDistributor(ledger *Ledger, risk *RiskMonitor, queue Enqueuer, bindings []ExecutorBinding, metrics domrepo.Metrics, lgr *applogger.Logger) *Distributor {
	return &Distributor{
		ledger:   ledger,
		risk:     risk,
		queue:    queue,
		bindings: bindings,
		metrics:  metrics,
		logger:   lgr,
	}
}

// Distribute evaluates eligibility, invokes every eligible executor client
// concurrently and records each outcome. One executor's failure or timeout
// never affects another's result. An empty eligible set is not an error: the
// signal is marked SKIPPED and an empty slice returned.
func (d *Distributor) Distribute(ctx context.Context, sig *models.Signal) ([]*models.ExecutionResult, error) {
	eligible := make([]ExecutorBinding, 0, len(d.bindings))
	reasons := make([]string, 0)
	for _, b := range d.bindings {
		ok, reason := d.risk.Eligible(b.Profile, sig)
		if !ok {
			reasons = append(reasons, b.Profile.ID+": "+reason)
			d.logger.Debug("executor ineligible",
				applogger.String("signal_id", sig.SignalID),
				applogger.String("executor_id", b.Profile.ID),
				applogger.String("reason", reason))
			continue
		}
		eligible = append(eligible, b)
	}

	if len(eligible) == 0 {
		reason := "no eligible executors"
		if len(reasons) > 0 {
			reason += ": " + strings.Join(reasons, "; ")
		}
		if err := d.ledger.MarkSkipped(ctx, sig.SignalID, reason); err != nil {
			d.logger.Warn("mark skipped failed",
				applogger.String("signal_id", sig.SignalID),
				applogger.Error(err))
		}
		return []*models.ExecutionResult{}, nil
	}

	// Fan out. Each client enforces its own timeout, so a slow executor
	// only delays its own slot.
	results := make([]*models.ExecutionResult, len(eligible))
	var wg sync.WaitGroup
	for i, b := range eligible {
		wg.Add(1)
		go func(i int, client domsvc.Executor) {
			defer wg.Done()
			results[i] = client.Execute(ctx, sig)
		}(i, b.Client)
	}
	wg.Wait()

	// Results are already in registration order; settle them in that
	// order for deterministic logging.
	anySuccess := false
	firstOrderID := ""
	enqueued := 0
	failures := make([]string, 0, len(results))
	for i, res := range results {
		if err := d.ledger.AppendExecution(ctx, sig.SignalID, res); err != nil {
			d.logger.Error("append execution failed",
				applogger.String("signal_id", sig.SignalID),
				applogger.String("executor_id", res.ExecutorID),
				applogger.Error(err))
		}
		if res.Success {
			anySuccess = true
			if firstOrderID == "" {
				firstOrderID = res.OrderID
			}
			continue
		}
		d.logger.Warn("executor call failed",
			applogger.String("signal_id", sig.SignalID),
			applogger.String("executor_id", res.ExecutorID),
			applogger.String("kind", string(res.ErrorKind)),
			applogger.String("error", res.Error))
		failures = append(failures, eligible[i].Profile.ID+": "+string(res.ErrorKind))
		if res.Retryable() {
			if err := d.queue.Enqueue(ctx, sig.SignalID, eligible[i].Profile.ID); err != nil {
				d.metrics.RecordError("enqueue")
				d.logger.Error("enqueue failed",
					applogger.String("signal_id", sig.SignalID),
					applogger.String("executor_id", eligible[i].Profile.ID),
					applogger.Error(err))
				continue
			}
			enqueued++
		}
	}

	if anySuccess {
		if err := d.ledger.MarkExecuted(ctx, sig.SignalID, firstOrderID); err != nil {
			d.logger.Error("mark executed failed",
				applogger.String("signal_id", sig.SignalID),
				applogger.Error(err))
		}
		return results, nil
	}

	// Nothing succeeded and no queue entry owns a retry: every delivery
	// failed permanently, so the signal must still reach a terminal,
	// queryable state.
	if enqueued == 0 {
		reason := "all deliveries failed permanently: " + strings.Join(failures, "; ")
		if err := d.ledger.MarkExpired(ctx, sig.SignalID, reason); err != nil {
			d.logger.Error("mark expired failed",
				applogger.String("signal_id", sig.SignalID),
				applogger.Error(err))
		}
	}
	return results, nil
}
