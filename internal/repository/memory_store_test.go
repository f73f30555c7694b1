package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
)

func record(id string) *models.SignalRecord {
	now := time.Now().UTC()
	return &models.SignalRecord{
		Signal: models.Signal{
			SignalID:    id,
			Symbol:      "AAPL",
			Action:      models.ActionBuy,
			GeneratedAt: now,
		},
		Status:     models.StatusPending,
		RecordedAt: now,
		UpdatedAt:  now,
	}
}

func TestMemoryStoreInsertIsSetIfAbsent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertSignal(ctx, record("sig-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertSignal(ctx, record("sig-1")); !errors.Is(err, models.ErrDuplicateSignal) {
		t.Fatalf("expected ErrDuplicateSignal, got %v", err)
	}
	if _, err := store.GetSignal(ctx, "missing"); !errors.Is(err, models.ErrSignalNotFound) {
		t.Fatalf("expected ErrSignalNotFound, got %v", err)
	}
}

func TestMemoryStoreHandsOutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.InsertSignal(ctx, record("sig-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, _ := store.GetSignal(ctx, "sig-1")
	rec.Symbol = "TSLA"

	again, _ := store.GetSignal(ctx, "sig-1")
	if again.Symbol != "AAPL" {
		t.Fatalf("stored record mutated through a copy")
	}
}

func TestMemoryStoreDueQueueEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	entries := []*models.QueueEntry{
		{SignalID: "sig-1", ExecutorID: "a", Status: models.QueuePending, NextCheckAt: now.Add(-2 * time.Minute)},
		{SignalID: "sig-2", ExecutorID: "a", Status: models.QueuePending, NextCheckAt: now.Add(-time.Minute)},
		{SignalID: "sig-3", ExecutorID: "a", Status: models.QueuePending, NextCheckAt: now.Add(time.Hour)},
		{SignalID: "sig-4", ExecutorID: "a", Status: models.QueueExpired, NextCheckAt: now.Add(-time.Hour)},
	}
	for _, e := range entries {
		if err := store.PutQueueEntry(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	due, err := store.DueQueueEntries(ctx, now, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due entries, got %d", len(due))
	}
	if due[0].SignalID != "sig-1" || due[1].SignalID != "sig-2" {
		t.Fatalf("due entries out of order: %s, %s", due[0].SignalID, due[1].SignalID)
	}

	limited, _ := store.DueQueueEntries(ctx, now, 1)
	if len(limited) != 1 || limited[0].SignalID != "sig-1" {
		t.Fatalf("limit not applied: %v", limited)
	}
}

func TestMemoryStoreCountActiveQueueEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	puts := []*models.QueueEntry{
		{SignalID: "sig-1", ExecutorID: "a", Status: models.QueuePending, NextCheckAt: now},
		{SignalID: "sig-1", ExecutorID: "b", Status: models.QueueExecuting, NextCheckAt: now},
		{SignalID: "sig-1", ExecutorID: "c", Status: models.QueueExpired, NextCheckAt: now},
		{SignalID: "sig-2", ExecutorID: "a", Status: models.QueuePending, NextCheckAt: now},
	}
	for _, e := range puts {
		if err := store.PutQueueEntry(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	n, err := store.CountActiveQueueEntries(ctx, "sig-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active entries, got %d", n)
	}
}
