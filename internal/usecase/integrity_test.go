package usecase

import (
	"context"
	"fmt"
	"testing"

	internalrepo "SigRelay/internal/repository"
)

func newTestIntegrity(t *testing.T) (*IntegrityMonitor, *Ledger, *internalrepo.MemoryStore, *capturingAlerts) {
	t.Helper()
	store := internalrepo.NewMemoryStore()
	ledger := NewLedger(store, nopJournal{}, nopMetrics{}, testLogger(t))
	alerts := &capturingAlerts{}
	monitor := NewIntegrityMonitor(store, nopJournal{}, alerts, nopMetrics{}, testLogger(t))
	return monitor, ledger, store, alerts
}

func TestIntegrityCheckPasses(t *testing.T) {
	monitor, ledger, _, alerts := newTestIntegrity(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.Record(ctx, testSignal(fmt.Sprintf("sig-%d", i))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	report, err := monitor.RunCheck(ctx, 0)
	if err != nil {
		t.Fatalf("run check: %v", err)
	}
	if !report.Success || !report.Full {
		t.Fatalf("expected clean full scan: %+v", report)
	}
	if report.Checked != 3 || report.Failed != 0 {
		t.Fatalf("expected 3 checked 0 failed, got %d/%d", report.Checked, report.Failed)
	}
	if alerts.published("integrity_violation") {
		t.Fatalf("clean scan must not alert")
	}
	if monitor.LastReport() == nil {
		t.Fatalf("last report not retained")
	}
}

func TestIntegrityDetectsTampering(t *testing.T) {
	monitor, ledger, store, alerts := newTestIntegrity(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.Record(ctx, testSignal(fmt.Sprintf("sig-%d", i))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	store.CorruptHash("sig-1", "deadbeef")

	report, err := monitor.RunCheck(ctx, 0)
	if err != nil {
		t.Fatalf("run check: %v", err)
	}
	if report.Success {
		t.Fatalf("tampering not detected")
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	if len(report.FailedSignals) != 1 || report.FailedSignals[0] != "sig-1" {
		t.Fatalf("unexpected failed ids: %v", report.FailedSignals)
	}
	if !alerts.published("integrity_violation") {
		t.Fatalf("expected integrity_violation alert")
	}
}

func TestIntegritySampledCheck(t *testing.T) {
	monitor, ledger, _, _ := newTestIntegrity(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := ledger.Record(ctx, testSignal(fmt.Sprintf("sig-%d", i))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	report, err := monitor.RunCheck(ctx, 3)
	if err != nil {
		t.Fatalf("run check: %v", err)
	}
	if report.Full {
		t.Fatalf("sample of 3 out of 10 reported as full scan")
	}
	if report.Total != 10 || report.Checked != 3 {
		t.Fatalf("expected 3 of 10 checked, got %d of %d", report.Checked, report.Total)
	}
	if !report.Success {
		t.Fatalf("clean sample reported failure")
	}
}
