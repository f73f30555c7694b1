package usecase

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SigRelay/internal/domain/models"
	internalrepo "SigRelay/internal/repository"
)

func TestLedgerRecordAssignsIdentity(t *testing.T) {
	ledger, _ := newTestLedger(t)

	sig := testSignal("")
	id, err := ledger.Record(context.Background(), sig)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated signal id")
	}

	rec, err := ledger.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != models.StatusPending {
		t.Fatalf("expected PENDING, got %s", rec.Status)
	}
	if rec.Hash != sig.CanonicalHash() {
		t.Fatalf("stored hash does not match canonical hash")
	}
	if rec.GenLatency <= 0 {
		t.Fatalf("expected positive generation latency, got %v", rec.GenLatency)
	}
}

func TestLedgerRejectsDuplicate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	sig := testSignal("sig-1")
	if _, err := ledger.Record(ctx, sig); err != nil {
		t.Fatalf("first record: %v", err)
	}

	replay := testSignal("sig-1")
	replay.Symbol = "TSLA"
	if _, err := ledger.Record(ctx, replay); !errors.Is(err, models.ErrDuplicateSignal) {
		t.Fatalf("expected ErrDuplicateSignal, got %v", err)
	}

	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Symbol != "AAPL" {
		t.Fatalf("original record mutated: symbol %s", rec.Symbol)
	}
}

func TestLedgerTerminalTransitionRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-1"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}

	if err := ledger.MarkCancelled(ctx, "sig-1", "operator"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Same-status transition is an idempotent no-op and keeps the first
	// order id.
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-2"); err != nil {
		t.Fatalf("repeated mark executed: %v", err)
	}
	rec, err := ledger.Get(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.OrderID != "ORD-1" {
		t.Fatalf("expected first order id kept, got %s", rec.OrderID)
	}
}

func TestLedgerStats(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"sig-1", "sig-2", "sig-3"} {
		if _, err := ledger.Record(ctx, testSignal(id)); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-1"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, "sig-2", "ORD-2"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if err := ledger.MarkSkipped(ctx, "sig-3", "no eligible executors"); err != nil {
		t.Fatalf("mark skipped: %v", err)
	}
	if err := ledger.RecordOutcome(ctx, "sig-1", decimal.NewFromFloat(185.0), 1.4); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if err := ledger.RecordOutcome(ctx, "sig-2", decimal.NewFromFloat(179.2), -1.8); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	stats, err := ledger.Stats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected 3 signals, got %d", stats.Total)
	}
	if stats.ByStatus[models.StatusExecuted] != 2 || stats.ByStatus[models.StatusSkipped] != 1 {
		t.Fatalf("unexpected status breakdown: %v", stats.ByStatus)
	}
	if stats.Wins != 1 || stats.Losses != 1 {
		t.Fatalf("expected 1 win and 1 loss, got %d/%d", stats.Wins, stats.Losses)
	}
	if stats.WinRatePct != 50 {
		t.Fatalf("expected 50%% win rate, got %.2f", stats.WinRatePct)
	}
}

func TestLedgerMirrorsToJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	journal, err := internalrepo.NewFileJournal(path)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	defer journal.Close()

	store := internalrepo.NewMemoryStore()
	ledger := NewLedger(store, journal, nopMetrics{}, testLogger(t))
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-1"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 journal lines, got %d", lines)
	}
}

func TestLedgerDrainArchivesWaitsForTerminalWrites(t *testing.T) {
	ledger, _ := newTestLedger(t)
	archive := &fakeArchive{}
	ledger.SetArchive(archive)
	ctx := context.Background()

	if _, err := ledger.Record(ctx, testSignal("sig-1")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, "sig-1", "ORD-1"); err != nil {
		t.Fatalf("mark executed: %v", err)
	}

	// The archive write runs asynchronously; after the drain it must have
	// landed.
	ledger.DrainArchives()
	ids := archive.archived()
	if len(ids) != 1 || ids[0] != "sig-1" {
		t.Fatalf("expected sig-1 archived, got %v", ids)
	}
}
