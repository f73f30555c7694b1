package repository

import (
	"context"
	"time"

	"SigRelay/internal/domain/models"
)

// RecordStore is the keyed persistence layer behind the ledger and the retry
// queue. Implementations: in-memory (tests, standalone) and Redis.
//
// InsertSignal has set-if-absent semantics and returns
// models.ErrDuplicateSignal when the id exists. The ledger serializes
// same-id writes above this layer, so Update may be a plain overwrite.
type RecordStore interface {
	InsertSignal(ctx context.Context, rec *models.SignalRecord) error
	GetSignal(ctx context.Context, signalID string) (*models.SignalRecord, error)
	UpdateSignal(ctx context.Context, rec *models.SignalRecord) error
	ListSignalIDs(ctx context.Context) ([]string, error)
	ListSignals(ctx context.Context, since time.Time) ([]*models.SignalRecord, error)

	PutQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	GetQueueEntry(ctx context.Context, signalID, executorID string) (*models.QueueEntry, error)
	DueQueueEntries(ctx context.Context, now time.Time, limit int) ([]*models.QueueEntry, error)
	QueueEntriesByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error)
	CountActiveQueueEntries(ctx context.Context, signalID string) (int, error)

	Health(ctx context.Context) error
	Close() error
}

// Journal is the append-only secondary log. One structured line per ledger
// write; never read on the hot path.
type Journal interface {
	AppendSignal(ctx context.Context, entry *models.JournalEntry) error
	AppendReport(ctx context.Context, report *models.IntegrityReport) error
	Close() error
}

// AlertPublisher pushes critical findings (tampering, risk halts) to the
// alerting backend.
type AlertPublisher interface {
	Publish(ctx context.Context, kind string, payload interface{}) error
}

// Archive receives terminal signal records for offline analytics. Archiving
// is best-effort and never blocks a lifecycle transition.
type Archive interface {
	ArchiveSignal(ctx context.Context, rec *models.SignalRecord) error
}

// Metrics abstracts the Prometheus recorder so use cases stay test-friendly.
type Metrics interface {
	RecordSignal(status string)
	RecordExecution(executorID, result string)
	RecordQueueRetry(executorID string)
	RecordQueueDepth(n int)
	RecordIntegrityCheck(checked, failed int)
	RecordTamper()
	RecordRiskLevel(executorID string, severity int)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
