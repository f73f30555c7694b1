package usecase

import (
	"context"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
	domsvc "SigRelay/internal/domain/service"
	internalrepo "SigRelay/internal/repository"
)

// immediatePolicy makes every enqueued entry due on the next cycle.
var immediatePolicy = RetryPolicy{MaxRetries: 2, Interval: 0, BackoffFactor: 2}

func newTestProcessor(t *testing.T, execs []domsvc.Executor, policy RetryPolicy) (*QueueProcessor, *Ledger, *internalrepo.MemoryStore) {
	t.Helper()
	ledger, store := newTestLedger(t)
	proc := NewQueueProcessor(store, ledger, execs, nil, policy, time.Minute, 10, nopMetrics{}, testLogger(t))
	return proc, ledger, store
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, Interval: 30 * time.Second, BackoffFactor: 2}
	if got := policy.Delay(1); got != 30*time.Second {
		t.Fatalf("retry 1: %v", got)
	}
	if got := policy.Delay(3); got != 120*time.Second {
		t.Fatalf("retry 3: %v", got)
	}
	// Capped at ten base intervals.
	if got := policy.Delay(10); got != 300*time.Second {
		t.Fatalf("retry 10: %v", got)
	}
}

func TestQueueRetrySucceeds(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{Success: true, OrderID: "ORD-B"},
	}}
	proc, ledger, store := newTestProcessor(t, []domsvc.Executor{exec}, immediatePolicy)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	proc.Cycle(ctx)

	entry, err := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != models.QueueExecuted {
		t.Fatalf("expected EXECUTED entry, got %s", entry.Status)
	}

	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != models.StatusExecuted || rec.OrderID != "ORD-B" {
		t.Fatalf("expected EXECUTED with ORD-B, got %s/%s", rec.Status, rec.OrderID)
	}
	if len(rec.Executions) != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", len(rec.Executions))
	}
}

func TestQueueRetriesExhausted(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{ErrorKind: models.KindTimeout, Error: "deadline exceeded"},
	}}
	proc, ledger, store := newTestProcessor(t, []domsvc.Executor{exec}, immediatePolicy)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	proc.Cycle(ctx) // retry 1, requeued
	proc.Cycle(ctx) // retry 2, exhausted

	entry, err := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != models.QueueExpired {
		t.Fatalf("expected EXPIRED entry, got %s", entry.Status)
	}
	if entry.RetryCount != 2 {
		t.Fatalf("expected 2 retries, got %d", entry.RetryCount)
	}

	// Last active entry gone and the signal never executed.
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusExpired {
		t.Fatalf("expected EXPIRED signal, got %s", rec.Status)
	}
}

func TestQueuePermanentFailureExpiresImmediately(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{ErrorKind: models.KindRemoteRejected, StatusCode: 422, Error: "unknown symbol"},
	}}
	proc, ledger, store := newTestProcessor(t, []domsvc.Executor{exec}, immediatePolicy)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	proc.Cycle(ctx)

	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.Status != models.QueueExpired {
		t.Fatalf("expected EXPIRED entry, got %s", entry.Status)
	}
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusExpired {
		t.Fatalf("expected EXPIRED signal, got %s", rec.Status)
	}
	if len(rec.Executions) != 1 {
		t.Fatalf("terminal failure should be recorded, got %d executions", len(rec.Executions))
	}
}

func TestQueueDeliversToExecutedSignal(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{Success: true, OrderID: "ORD-B"},
	}}
	proc, ledger, store := newTestProcessor(t, []domsvc.Executor{exec}, immediatePolicy)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-A"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	proc.Cycle(ctx)

	// The late executor still gets its fill; the signal keeps the first
	// order id.
	if exec.callCount() != 1 {
		t.Fatalf("expected delivery to the late executor")
	}
	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.Status != models.QueueExecuted {
		t.Fatalf("expected EXECUTED entry, got %s", entry.Status)
	}
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.OrderID != "ORD-A" {
		t.Fatalf("first order id lost: %s", rec.OrderID)
	}
}

func TestQueueDropsCancelledSignal(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b"}
	proc, ledger, store := newTestProcessor(t, []domsvc.Executor{exec}, immediatePolicy)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := ledger.MarkCancelled(ctx, "sig-1", "operator"); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}

	proc.Cycle(ctx)

	if exec.callCount() != 0 {
		t.Fatalf("cancelled signal must not reach the executor")
	}
	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.Status != models.QueueExpired {
		t.Fatalf("expected EXPIRED entry, got %s", entry.Status)
	}
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusCancelled {
		t.Fatalf("cancelled signal re-marked as %s", rec.Status)
	}
}

func TestQueueEnqueueIdempotent(t *testing.T) {
	proc, _, store := newTestProcessor(t, nil, immediatePolicy)
	ctx := context.Background()

	seeded := &models.QueueEntry{
		SignalID:    "sig-1",
		ExecutorID:  "exec-b",
		Status:      models.QueuePending,
		RetryCount:  3,
		CreatedAt:   time.Now().UTC(),
		NextCheckAt: time.Now().UTC().Add(time.Minute),
	}
	if err := store.PutQueueEntry(ctx, seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.RetryCount != 3 {
		t.Fatalf("active entry overwritten: retry count %d", entry.RetryCount)
	}
}

func TestQueueHaltedExecutorNotRetried(t *testing.T) {
	exec := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{Success: true, OrderID: "ORD-B"},
	}}
	ledger, store := newTestLedger(t)
	monitor, _ := newTestRiskMonitor(t, RiskLimits{MaxDrawdownPct: 2.0}, nil)
	proc := NewQueueProcessor(store, ledger, []domsvc.Executor{exec}, monitor, immediatePolicy, time.Minute, 10, nopMetrics{}, testLogger(t))
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := proc.Enqueue(ctx, "sig-1", "exec-b"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Breach raised after the enqueue.
	monitor.UpdateEquity(ctx, "exec-b", 100000)
	monitor.UpdateEquity(ctx, "exec-b", 97000)

	proc.Cycle(ctx)

	if exec.callCount() != 0 {
		t.Fatalf("halted executor must not receive queued retries")
	}
	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.Status != models.QueueExpired {
		t.Fatalf("expected EXPIRED entry, got %s", entry.Status)
	}
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusExpired {
		t.Fatalf("expected EXPIRED signal, got %s", rec.Status)
	}
}

func TestReconcileRequeuesStaleExecuting(t *testing.T) {
	ledger, store := newTestLedger(t)
	proc := NewQueueProcessor(store, ledger, nil, nil, immediatePolicy, time.Millisecond, 10, nopMetrics{}, testLogger(t))
	ctx := context.Background()

	stale := &models.QueueEntry{
		SignalID:      "sig-1",
		ExecutorID:    "exec-b",
		Status:        models.QueueExecuting,
		CreatedAt:     time.Now().UTC().Add(-time.Hour),
		LastCheckedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := store.PutQueueEntry(ctx, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := proc.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	entry, _ := store.GetQueueEntry(ctx, "sig-1", "exec-b")
	if entry.Status != models.QueuePending {
		t.Fatalf("expected stale entry requeued, got %s", entry.Status)
	}
	if entry.NextCheckAt.After(time.Now().UTC()) {
		t.Fatalf("requeued entry should be due immediately")
	}
}
