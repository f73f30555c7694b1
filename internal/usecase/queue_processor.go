package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	domsvc "SigRelay/internal/domain/service"
	applogger "SigRelay/pkg/logger"
)

// RetryPolicy expresses the retry curve as data instead of control flow.
type RetryPolicy struct {
	MaxRetries    int
	Interval      time.Duration
	BackoffFactor float64
}

// Delay returns the wait before the given retry number (1-based),
// exponential with a cap of ten base intervals.
func (p RetryPolicy) Delay(retry int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.Interval)
	for i := 1; i < retry; i++ {
		d *= factor
	}
	if max := float64(p.Interval) * 10; d > max {
		d = max
	}
	return time.Duration(d)
}

// HaltGuard reports whether an executor's account is currently halted.
type HaltGuard interface {
	Halted(executorID string) bool
}

// QueueProcessor is the background retry loop. It owns every QueueEntry
// transition from creation to EXECUTED or EXPIRED and persists state on both
// sides of each network call so a crash mid-call is recoverable.
type QueueProcessor struct {
	store     domrepo.RecordStore
	ledger    *Ledger
	executors map[string]domsvc.Executor
	halts     HaltGuard
	policy    RetryPolicy
	interval  time.Duration
	batch     int
	metrics   domrepo.Metrics
	logger    *applogger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueueProcessor creates the processor over the given executor clients.
// halts may be nil, in which case queued retries skip the halt check.
func NewQueueProcessor(store domrepo.RecordStore, ledger *Ledger, executors []domsvc.Executor, halts HaltGuard, policy RetryPolicy, interval time.Duration, batch int, metrics domrepo.Metrics, lgr *applogger.Logger) *QueueProcessor {
	byID := make(map[string]domsvc.Executor, len(executors))
	for _, ex := range executors {
		byID[ex.ID()] = ex
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &QueueProcessor{
		store:     store,
		ledger:    ledger,
		executors: byID,
		halts:     halts,
		policy:    policy,
		interval:  interval,
		batch:     batch,
		metrics:   metrics,
		logger:    lgr,
	}
}

// Enqueue registers a (signal, executor) pair for retry. Re-enqueueing an
// already-active pair is a no-op.
func (p *QueueProcessor) Enqueue(ctx context.Context, signalID, executorID string) error {
	existing, err := p.store.GetQueueEntry(ctx, signalID, executorID)
	if err == nil && existing.Status.Active() {
		return nil
	}
	if err != nil && !errors.Is(err, models.ErrQueueEntryNotFound) {
		return err
	}

	now := time.Now().UTC()
	entry := &models.QueueEntry{
		SignalID:    signalID,
		ExecutorID:  executorID,
		Status:      models.QueuePending,
		CreatedAt:   now,
		NextCheckAt: now.Add(p.policy.Interval),
	}
	if err := p.store.PutQueueEntry(ctx, entry); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	p.logger.Info("signal enqueued for retry",
		applogger.String("signal_id", signalID),
		applogger.String("executor_id", executorID))
	return nil
}

// Start reconciles stale entries left by a crash, then runs the cycle loop
// until Stop or context cancellation.
func (p *QueueProcessor) Start(ctx context.Context) error {
	if err := p.Reconcile(ctx); err != nil {
		return fmt.Errorf("queue reconcile: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Cycle(ctx)
			}
		}
	}()

	p.logger.Info("queue processor started",
		applogger.Duration("interval_ms", p.interval),
		applogger.Int("batch", p.batch))
	return nil
}

// Stop halts the loop and waits for the in-flight cycle to finish.
func (p *QueueProcessor) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Reconcile requeues EXECUTING entries older than one cycle interval: the
// process died between the persisted transition and the result write.
func (p *QueueProcessor) Reconcile(ctx context.Context) error {
	stale, err := p.store.QueueEntriesByStatus(ctx, models.QueueExecuting)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, entry := range stale {
		if now.Sub(entry.LastCheckedAt) < p.interval {
			continue
		}
		entry.Status = models.QueuePending
		entry.NextCheckAt = now
		if err := p.store.PutQueueEntry(ctx, entry); err != nil {
			return err
		}
		p.logger.Warn("stale executing entry requeued",
			applogger.String("signal_id", entry.SignalID),
			applogger.String("executor_id", entry.ExecutorID))
	}
	return nil
}

// Cycle processes one bounded batch of due entries.
func (p *QueueProcessor) Cycle(ctx context.Context) {
	now := time.Now().UTC()
	due, err := p.store.DueQueueEntries(ctx, now, p.batch)
	if err != nil {
		p.metrics.RecordError("queue_fetch")
		p.logger.Error("fetch due entries failed", applogger.Error(err))
		return
	}
	p.metrics.RecordQueueDepth(len(due))

	for _, entry := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.process(ctx, entry)
	}
}

func (p *QueueProcessor) process(ctx context.Context, entry *models.QueueEntry) {
	exec, ok := p.executors[entry.ExecutorID]
	if !ok {
		p.expire(ctx, entry, nil, "executor no longer registered")
		return
	}
	// A halt raised after enqueue still blocks delivery; clearing one
	// takes an explicit reset, so the retry cannot wait it out.
	if p.halts != nil && p.halts.Halted(entry.ExecutorID) {
		p.expire(ctx, entry, nil, "executor trading halted")
		return
	}

	rec, err := p.ledger.Get(ctx, entry.SignalID)
	if err != nil {
		p.expire(ctx, entry, nil, "signal record unavailable: "+err.Error())
		return
	}
	// An EXECUTED signal still gets delivered to the executors that
	// missed it; only abandoned lifecycles stop the retries.
	if rec.Status == models.StatusExpired || rec.Status == models.StatusCancelled {
		p.expire(ctx, entry, nil, "signal lifecycle ended: "+string(rec.Status))
		return
	}

	// Persist the claim before touching the network.
	entry.Status = models.QueueExecuting
	entry.LastCheckedAt = time.Now().UTC()
	if err := p.store.PutQueueEntry(ctx, entry); err != nil {
		p.metrics.RecordError("queue_persist")
		p.logger.Error("persist executing entry failed", applogger.Error(err))
		return
	}

	res := exec.Execute(ctx, &rec.Signal)

	if res.Success {
		entry.Status = models.QueueExecuted
		if err := p.store.PutQueueEntry(ctx, entry); err != nil {
			p.logger.Error("persist executed entry failed", applogger.Error(err))
		}
		if err := p.ledger.AppendExecution(ctx, entry.SignalID, res); err != nil {
			p.logger.Error("append retry execution failed", applogger.Error(err))
		}
		if err := p.ledger.MarkExecuted(ctx, entry.SignalID, res.OrderID); err != nil {
			p.logger.Error("mark executed failed", applogger.Error(err))
		}
		p.logger.Info("queued signal executed",
			applogger.String("signal_id", entry.SignalID),
			applogger.String("executor_id", entry.ExecutorID),
			applogger.String("order_id", res.OrderID),
			applogger.Int("retries", entry.RetryCount))
		return
	}

	entry.RetryCount++
	p.metrics.RecordQueueRetry(entry.ExecutorID)

	if !res.Retryable() {
		p.expire(ctx, entry, res, "permanent failure: "+string(res.ErrorKind))
		return
	}
	if entry.RetryCount >= p.policy.MaxRetries {
		p.expire(ctx, entry, res, fmt.Sprintf("retries exhausted after %d attempts", entry.RetryCount))
		return
	}

	entry.Status = models.QueuePending
	entry.NextCheckAt = time.Now().UTC().Add(p.policy.Delay(entry.RetryCount))
	if err := p.store.PutQueueEntry(ctx, entry); err != nil {
		p.metrics.RecordError("queue_persist")
		p.logger.Error("persist pending entry failed", applogger.Error(err))
		return
	}
	p.logger.Warn("retry failed, requeued",
		applogger.String("signal_id", entry.SignalID),
		applogger.String("executor_id", entry.ExecutorID),
		applogger.Int("retry_count", entry.RetryCount),
		applogger.String("kind", string(res.ErrorKind)))
}

// expire terminates an entry. When it was the signal's last active entry and
// the signal never executed, the signal itself expires too.
func (p *QueueProcessor) expire(ctx context.Context, entry *models.QueueEntry, res *models.ExecutionResult, reason string) {
	entry.Status = models.QueueExpired
	if err := p.store.PutQueueEntry(ctx, entry); err != nil {
		p.metrics.RecordError("queue_persist")
		p.logger.Error("persist expired entry failed", applogger.Error(err))
		return
	}
	if res != nil {
		if err := p.ledger.AppendExecution(ctx, entry.SignalID, res); err != nil {
			p.logger.Error("append terminal failure failed", applogger.Error(err))
		}
	}

	p.logger.Warn("queue entry expired",
		applogger.String("signal_id", entry.SignalID),
		applogger.String("executor_id", entry.ExecutorID),
		applogger.String("reason", reason))

	active, err := p.store.CountActiveQueueEntries(ctx, entry.SignalID)
	if err != nil {
		p.logger.Error("count active entries failed", applogger.Error(err))
		return
	}
	if active > 0 {
		return
	}
	rec, err := p.ledger.Get(ctx, entry.SignalID)
	if err != nil || rec.Status.Terminal() {
		return
	}
	if err := p.ledger.MarkExpired(ctx, entry.SignalID, reason); err != nil {
		p.logger.Error("mark expired failed", applogger.Error(err))
	}
}
