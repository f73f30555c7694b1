package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

const ledgerLockStripes = 64

// Ledger owns signal persistence: hash-at-write, lifecycle transitions, and
// the mirror into the append-only journal. Writes to the same signal id are
// serialized through lock striping; unrelated ids proceed concurrently.
type Ledger struct {
	store   domrepo.RecordStore
	journal domrepo.Journal
	archive domrepo.Archive
	metrics domrepo.Metrics
	logger  *applogger.Logger

	locks     [ledgerLockStripes]sync.Mutex
	archiveWG sync.WaitGroup
}

// NewLedger creates the ledger service.
func NewLedger(store domrepo.RecordStore, journal domrepo.Journal, metrics domrepo.Metrics, lgr *applogger.Logger) *Ledger {
	return &Ledger{store: store, journal: journal, metrics: metrics, logger: lgr}
}

// SetArchive attaches an optional terminal-outcome archive.
func (l *Ledger) SetArchive(archive domrepo.Archive) { l.archive = archive }

func (l *Ledger) lockFor(signalID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(signalID))
	return &l.locks[h.Sum32()%ledgerLockStripes]
}

// Record assigns an id if absent, computes the canonical hash and generation
// latency, and persists the signal atomically. A second call with the same
// id returns models.ErrDuplicateSignal and leaves the original untouched.
func (l *Ledger) Record(ctx context.Context, sig *models.Signal) (string, error) {
	if sig.SignalID == "" {
		sig.SignalID = uuid.NewString()
	}
	if sig.GeneratedAt.IsZero() {
		sig.GeneratedAt = time.Now().UTC()
	}

	mu := l.lockFor(sig.SignalID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	rec := &models.SignalRecord{
		Signal:     *sig,
		Status:     models.StatusPending,
		Hash:       sig.CanonicalHash(),
		RecordedAt: now,
		UpdatedAt:  now,
		GenLatency: now.Sub(sig.GeneratedAt),
	}

	if err := l.store.InsertSignal(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateSignal) {
			l.logger.Warn("duplicate signal ignored",
				applogger.String("signal_id", sig.SignalID),
				applogger.String("symbol", sig.Symbol))
			l.metrics.RecordError("duplicate_signal")
			return sig.SignalID, models.ErrDuplicateSignal
		}
		return "", fmt.Errorf("record signal: %w", err)
	}

	l.metrics.RecordSignal(string(models.StatusPending))
	l.metrics.RecordLatency("signal_generation", rec.GenLatency.Seconds())
	l.mirror(ctx, "recorded", rec)

	l.logger.Info("signal recorded",
		applogger.String("signal_id", rec.SignalID),
		applogger.String("symbol", rec.Symbol),
		applogger.String("action", string(rec.Action)),
		applogger.String("hash", rec.Hash[:12]))
	return sig.SignalID, nil
}

// Get returns the full record for a signal id.
func (l *Ledger) Get(ctx context.Context, signalID string) (*models.SignalRecord, error) {
	return l.store.GetSignal(ctx, signalID)
}

// MarkExecuted transitions a signal to EXECUTED, recording the order id of
// the first confirmed fill. Calling it again for the same signal is a no-op.
func (l *Ledger) MarkExecuted(ctx context.Context, signalID, orderID string) error {
	return l.transition(ctx, signalID, models.StatusExecuted, "", func(rec *models.SignalRecord) {
		if rec.OrderID == "" {
			rec.OrderID = orderID
		}
	})
}

// MarkSkipped transitions a signal to SKIPPED with the ineligibility reason.
func (l *Ledger) MarkSkipped(ctx context.Context, signalID, reason string) error {
	return l.transition(ctx, signalID, models.StatusSkipped, reason, nil)
}

// MarkExpired transitions a signal to EXPIRED after retries are exhausted.
func (l *Ledger) MarkExpired(ctx context.Context, signalID, reason string) error {
	return l.transition(ctx, signalID, models.StatusExpired, reason, nil)
}

// MarkCancelled transitions a signal to CANCELLED (operator action).
func (l *Ledger) MarkCancelled(ctx context.Context, signalID, reason string) error {
	return l.transition(ctx, signalID, models.StatusCancelled, reason, nil)
}

func (l *Ledger) transition(ctx context.Context, signalID string, to models.SignalStatus, reason string, mutate func(*models.SignalRecord)) error {
	mu := l.lockFor(signalID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := l.store.GetSignal(ctx, signalID)
	if err != nil {
		return err
	}
	if rec.Status == to {
		return nil
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("%s -> %s for %s: %w", rec.Status, to, signalID, models.ErrInvalidTransition)
	}

	rec.Status = to
	rec.StatusReason = reason
	rec.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(rec)
	}

	if err := l.store.UpdateSignal(ctx, rec); err != nil {
		return fmt.Errorf("update signal: %w", err)
	}

	l.metrics.RecordSignal(string(to))
	l.mirror(ctx, strings.ToLower(string(to)), rec)

	if to.Terminal() && l.archive != nil {
		l.archiveWG.Add(1)
		go func() {
			defer l.archiveWG.Done()
			l.archiveTerminal(rec)
		}()
	}

	l.logger.Info("signal status changed",
		applogger.String("signal_id", signalID),
		applogger.String("status", string(to)),
		applogger.String("reason", reason))
	return nil
}

// AppendExecution attaches one per-executor outcome to the signal's record.
func (l *Ledger) AppendExecution(ctx context.Context, signalID string, res *models.ExecutionResult) error {
	mu := l.lockFor(signalID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := l.store.GetSignal(ctx, signalID)
	if err != nil {
		return err
	}
	rec.Executions = append(rec.Executions, res)
	rec.UpdatedAt = time.Now().UTC()
	if err := l.store.UpdateSignal(ctx, rec); err != nil {
		return fmt.Errorf("append execution: %w", err)
	}

	result := "success"
	if !res.Success {
		result = string(res.ErrorKind)
	}
	l.metrics.RecordExecution(res.ExecutorID, result)
	l.metrics.RecordLatency("executor_call", res.Latency.Seconds())
	return nil
}

// RecordOutcome stores the realized exit for an executed signal. Fed back by
// the executor's trade-confirmation path; drives win-rate stats.
func (l *Ledger) RecordOutcome(ctx context.Context, signalID string, exitPrice decimal.Decimal, profitLossPct float64) error {
	mu := l.lockFor(signalID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := l.store.GetSignal(ctx, signalID)
	if err != nil {
		return err
	}
	rec.ExitPrice = exitPrice
	rec.ProfitLossPct = profitLossPct
	if profitLossPct >= 0 {
		rec.Outcome = "win"
	} else {
		rec.Outcome = "loss"
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := l.store.UpdateSignal(ctx, rec); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	l.mirror(ctx, "outcome", rec)
	return nil
}

// Stats aggregates outcomes for signals recorded at or after since.
func (l *Ledger) Stats(ctx context.Context, since time.Time) (*models.LedgerStats, error) {
	recs, err := l.store.ListSignals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}

	stats := &models.LedgerStats{
		Since:    since,
		Total:    len(recs),
		ByStatus: make(map[models.SignalStatus]int),
	}
	for _, rec := range recs {
		stats.ByStatus[rec.Status]++
		if rec.Status == models.StatusExecuted && rec.Outcome != "" {
			if rec.ProfitLossPct >= 0 {
				stats.Wins++
			} else {
				stats.Losses++
			}
		}
	}
	if decided := stats.Wins + stats.Losses; decided > 0 {
		stats.WinRatePct = float64(stats.Wins) / float64(decided) * 100
	}
	return stats, nil
}

func (l *Ledger) mirror(ctx context.Context, event string, rec *models.SignalRecord) {
	if err := l.journal.AppendSignal(ctx, models.JournalEntryFor(event, rec)); err != nil {
		l.metrics.RecordError("journal_append")
		l.logger.Error("journal append failed",
			applogger.String("signal_id", rec.SignalID),
			applogger.String("event", event),
			applogger.Error(err))
	}
}

// DrainArchives blocks until every in-flight archive write has finished.
// Called during shutdown before the archive backend closes.
func (l *Ledger) DrainArchives() { l.archiveWG.Wait() }

func (l *Ledger) archiveTerminal(rec *models.SignalRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.archive.ArchiveSignal(ctx, rec); err != nil {
		l.metrics.RecordError("archive")
		l.logger.Warn("archive failed",
			applogger.String("signal_id", rec.SignalID),
			applogger.Error(err))
	}
}
