package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SigRelay/internal/domain/models"
	internalrepo "SigRelay/internal/repository"
	applogger "SigRelay/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string)            {}
func (nopMetrics) RecordExecution(string, string) {}
func (nopMetrics) RecordQueueRetry(string)        {}
func (nopMetrics) RecordQueueDepth(int)           {}
func (nopMetrics) RecordIntegrityCheck(int, int)  {}
func (nopMetrics) RecordTamper()                  {}
func (nopMetrics) RecordRiskLevel(string, int)    {}
func (nopMetrics) RecordLatency(string, float64)  {}
func (nopMetrics) RecordError(string)             {}

type nopJournal struct{}

func (nopJournal) AppendSignal(context.Context, *models.JournalEntry) error    { return nil }
func (nopJournal) AppendReport(context.Context, *models.IntegrityReport) error { return nil }
func (nopJournal) Close() error                                                { return nil }

// capturingAlerts records published alert kinds for assertions.
type capturingAlerts struct {
	mu    sync.Mutex
	kinds []string
}

func (a *capturingAlerts) Publish(_ context.Context, kind string, _ interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds = append(a.kinds, kind)
	return nil
}

func (a *capturingAlerts) published(kind string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// fakeExecutor returns canned results in order, repeating the last one.
type fakeExecutor struct {
	id      string
	mu      sync.Mutex
	calls   int
	results []*models.ExecutionResult
}

func (f *fakeExecutor) ID() string { return f.id }

func (f *fakeExecutor) Execute(_ context.Context, _ *models.Signal) *models.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return &models.ExecutionResult{ExecutorID: f.id, Success: true, OrderID: "ORD-" + f.id, At: time.Now().UTC()}
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	cp := *res
	cp.ExecutorID = f.id
	return &cp
}

func (f *fakeExecutor) Status(context.Context) (*models.ExecutorStatus, error) {
	return &models.ExecutorStatus{Status: "healthy"}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeArchive records archived signal ids for assertions.
type fakeArchive struct {
	mu  sync.Mutex
	ids []string
}

func (a *fakeArchive) ArchiveSignal(_ context.Context, rec *models.SignalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, rec.SignalID)
	return nil
}

func (a *fakeArchive) archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...)
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (q *fakeEnqueuer) Enqueue(_ context.Context, signalID, executorID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pairs = append(q.pairs, [2]string{signalID, executorID})
	return nil
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func newTestLedger(t *testing.T) (*Ledger, *internalrepo.MemoryStore) {
	t.Helper()
	store := internalrepo.NewMemoryStore()
	return NewLedger(store, nopJournal{}, nopMetrics{}, testLogger(t)), store
}

func testSignal(id string) *models.Signal {
	return &models.Signal{
		SignalID:    id,
		Symbol:      "AAPL",
		Action:      models.ActionBuy,
		EntryPrice:  decimal.NewFromFloat(182.50),
		TargetPrice: decimal.NewFromFloat(190.00),
		StopPrice:   decimal.NewFromFloat(178.00),
		Confidence:  90,
		Strategy:    "momentum_v2",
		GeneratedAt: time.Now().UTC().Add(-50 * time.Millisecond),
	}
}
