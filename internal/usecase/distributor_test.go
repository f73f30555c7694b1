package usecase

import (
	"context"
	"strings"
	"testing"

	"SigRelay/internal/domain/models"
)

func newTestDistributor(t *testing.T, bindings []ExecutorBinding, limits RiskLimits) (*Distributor, *Ledger, *RiskMonitor, *fakeEnqueuer) {
	t.Helper()
	ledger, _ := newTestLedger(t)
	monitor, _ := newTestRiskMonitor(t, limits, nil)
	queue := &fakeEnqueuer{}
	return NewDistributor(ledger, monitor, queue, bindings, nopMetrics{}, testLogger(t)), ledger, monitor, queue
}

func binding(id string, minConfidence float64, exec *fakeExecutor) ExecutorBinding {
	return ExecutorBinding{
		Profile: &models.ExecutorProfile{ID: id, Family: "equities", MinConfidence: minConfidence},
		Client:  exec,
	}
}

func TestDistributeMixedResults(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a", results: []*models.ExecutionResult{
		{Success: true, OrderID: "ORD-A"},
	}}
	execB := &fakeExecutor{id: "exec-b", results: []*models.ExecutionResult{
		{ErrorKind: models.KindTimeout, Error: "deadline exceeded"},
	}}
	dist, ledger, _, queue := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 75, execA),
		binding("exec-b", 82, execB),
	}, RiskLimits{})
	ctx := context.Background()

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}

	results, err := dist.Distribute(ctx, sig)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success || results[0].ExecutorID != "exec-a" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Success || results[1].ErrorKind != models.KindTimeout {
		t.Fatalf("unexpected second result: %+v", results[1])
	}

	// One success is enough to execute the signal; the timed-out executor
	// goes to the retry queue.
	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != models.StatusExecuted || rec.OrderID != "ORD-A" {
		t.Fatalf("expected EXECUTED with ORD-A, got %s/%s", rec.Status, rec.OrderID)
	}
	if len(rec.Executions) != 2 {
		t.Fatalf("expected 2 recorded executions, got %d", len(rec.Executions))
	}
	if len(queue.pairs) != 1 || queue.pairs[0] != [2]string{"sig-1", "exec-b"} {
		t.Fatalf("unexpected enqueued pairs: %v", queue.pairs)
	}
}

func TestDistributeSkipsWhenNoneEligible(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a"}
	dist, ledger, _, queue := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 95, execA),
	}, RiskLimits{})
	ctx := context.Background()

	sig := testSignal("sig-1")
	sig.Confidence = 60
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}

	results, err := dist.Distribute(ctx, sig)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if execA.callCount() != 0 {
		t.Fatalf("ineligible executor was invoked")
	}
	if len(queue.pairs) != 0 {
		t.Fatalf("nothing should be enqueued, got %v", queue.pairs)
	}

	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != models.StatusSkipped {
		t.Fatalf("expected SKIPPED, got %s", rec.Status)
	}
	if !strings.Contains(rec.StatusReason, "exec-a") {
		t.Fatalf("reason should name the executor: %s", rec.StatusReason)
	}
}

func TestDistributeNeverInvokesHaltedExecutor(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a"}
	execB := &fakeExecutor{id: "exec-b"}
	dist, ledger, monitor, _ := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 75, execA),
		binding("exec-b", 75, execB),
	}, RiskLimits{MaxDrawdownPct: 2.0})
	ctx := context.Background()

	monitor.UpdateEquity(ctx, "exec-a", 100000)
	monitor.UpdateEquity(ctx, "exec-a", 97000)

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}
	results, err := dist.Distribute(ctx, sig)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if execA.callCount() != 0 {
		t.Fatalf("halted executor was invoked")
	}
	if execB.callCount() != 1 {
		t.Fatalf("healthy executor not invoked")
	}
}

func TestDistributePermanentRejectionNotEnqueued(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a", results: []*models.ExecutionResult{
		{ErrorKind: models.KindRemoteRejected, StatusCode: 400, Error: "bad symbol"},
	}}
	dist, ledger, _, queue := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 75, execA),
	}, RiskLimits{})
	ctx := context.Background()

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := dist.Distribute(ctx, sig); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(queue.pairs) != 0 {
		t.Fatalf("4xx rejection should not be retried, got %v", queue.pairs)
	}

	// With no retry owning the signal it must still terminalize.
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", rec.Status)
	}
	if !strings.Contains(rec.StatusReason, "exec-a") {
		t.Fatalf("reason should name the executor: %s", rec.StatusReason)
	}
}

func TestDistributeAllPermanentFailuresTerminalize(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a", results: []*models.ExecutionResult{
		{ErrorKind: models.KindDisabled, Error: "executor disabled"},
	}}
	dist, ledger, _, queue := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 75, execA),
	}, RiskLimits{})
	ctx := context.Background()

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := dist.Distribute(ctx, sig); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if len(queue.pairs) != 0 {
		t.Fatalf("disabled executor should not be retried, got %v", queue.pairs)
	}
	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != models.StatusExpired {
		t.Fatalf("signal left in %s with no owning queue entry", rec.Status)
	}
	if !strings.Contains(rec.StatusReason, string(models.KindDisabled)) {
		t.Fatalf("reason should carry the failure kind: %s", rec.StatusReason)
	}
}

func TestDistributeRetryableFailureStaysPending(t *testing.T) {
	execA := &fakeExecutor{id: "exec-a", results: []*models.ExecutionResult{
		{ErrorKind: models.KindTimeout, Error: "deadline exceeded"},
	}}
	dist, ledger, _, queue := newTestDistributor(t, []ExecutorBinding{
		binding("exec-a", 75, execA),
	}, RiskLimits{})
	ctx := context.Background()

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := dist.Distribute(ctx, sig); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	// The queue entry owns the signal now; it must not be terminalized.
	if len(queue.pairs) != 1 {
		t.Fatalf("expected 1 enqueued pair, got %v", queue.pairs)
	}
	rec, _ := ledger.Get(ctx, "sig-1")
	if rec.Status != models.StatusPending {
		t.Fatalf("expected PENDING while retry is owned, got %s", rec.Status)
	}
}
