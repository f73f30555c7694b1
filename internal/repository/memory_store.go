package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
)

// MemoryStore is an in-process RecordStore for tests and standalone runs.
// It hands out copies so callers can never mutate stored state directly.
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[string]*models.SignalRecord
	queue   map[string]*models.QueueEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals: make(map[string]*models.SignalRecord),
		queue:   make(map[string]*models.QueueEntry),
	}
}

func cloneRecord(rec *models.SignalRecord) *models.SignalRecord {
	out := *rec
	if rec.Executions != nil {
		out.Executions = make([]*models.ExecutionResult, len(rec.Executions))
		for i, ex := range rec.Executions {
			cp := *ex
			out.Executions[i] = &cp
		}
	}
	return &out
}

func (s *MemoryStore) InsertSignal(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[rec.SignalID]; ok {
		return models.ErrDuplicateSignal
	}
	s.signals[rec.SignalID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) GetSignal(_ context.Context, signalID string) (*models.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.signals[signalID]
	if !ok {
		return nil, models.ErrSignalNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) UpdateSignal(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[rec.SignalID]; !ok {
		return models.ErrSignalNotFound
	}
	s.signals[rec.SignalID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) ListSignalIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.signals))
	for id := range s.signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListSignals(_ context.Context, since time.Time) ([]*models.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SignalRecord, 0, len(s.signals))
	for _, rec := range s.signals {
		if !since.IsZero() && rec.RecordedAt.Before(since) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// CorruptHash overwrites a stored hash. Test hook for integrity scans; not
// part of the RecordStore contract.
func (s *MemoryStore) CorruptHash(signalID, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.signals[signalID]; ok {
		rec.Hash = hash
	}
}

func (s *MemoryStore) PutQueueEntry(_ context.Context, entry *models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.queue[entry.Key()] = &cp
	return nil
}

func (s *MemoryStore) GetQueueEntry(_ context.Context, signalID, executorID string) (*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.queue[signalID+":"+executorID]
	if !ok {
		return nil, models.ErrQueueEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *MemoryStore) DueQueueEntries(_ context.Context, now time.Time, limit int) ([]*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	due := make([]*models.QueueEntry, 0)
	for _, entry := range s.queue {
		if entry.Status == models.QueuePending && !entry.NextCheckAt.After(now) {
			cp := *entry
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) QueueEntriesByStatus(_ context.Context, status models.QueueStatus) ([]*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.QueueEntry, 0)
	for _, entry := range s.queue {
		if entry.Status == status {
			cp := *entry
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountActiveQueueEntries(_ context.Context, signalID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entry := range s.queue {
		if entry.SignalID == signalID && entry.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var _ domrepo.RecordStore = (*MemoryStore)(nil)
