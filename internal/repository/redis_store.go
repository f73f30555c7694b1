package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
)

// RedisStore implements RecordStore on Redis. Signals live under one key per
// id with a set index for scans; queue entries keep a sorted-set schedule
// keyed by next-check time so due lookups are a single ZRANGEBYSCORE.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed record store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sigrelay"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) signalKey(id string) string  { return s.prefix + ":signal:" + id }
func (s *RedisStore) signalIndexKey() string      { return s.prefix + ":signals" }
func (s *RedisStore) queueKey(key string) string  { return s.prefix + ":queue:entry:" + key }
func (s *RedisStore) queueDueKey() string         { return s.prefix + ":queue:due" }
func (s *RedisStore) queueIndexKey() string       { return s.prefix + ":queue:index" }
func (s *RedisStore) queueSigKey(id string) string { return s.prefix + ":queue:signal:" + id }

func (s *RedisStore) InsertSignal(ctx context.Context, rec *models.SignalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.signalKey(rec.SignalID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("setnx signal: %w", err)
	}
	if !ok {
		return models.ErrDuplicateSignal
	}
	if err := s.client.SAdd(ctx, s.signalIndexKey(), rec.SignalID).Err(); err != nil {
		return fmt.Errorf("index signal: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSignal(ctx context.Context, signalID string) (*models.SignalRecord, error) {
	data, err := s.client.Get(ctx, s.signalKey(signalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSignalNotFound
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}
	var rec models.SignalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal signal: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) UpdateSignal(ctx context.Context, rec *models.SignalRecord) error {
	exists, err := s.client.Exists(ctx, s.signalKey(rec.SignalID)).Result()
	if err != nil {
		return fmt.Errorf("exists signal: %w", err)
	}
	if exists == 0 {
		return models.ErrSignalNotFound
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := s.client.Set(ctx, s.signalKey(rec.SignalID), data, 0).Err(); err != nil {
		return fmt.Errorf("set signal: %w", err)
	}
	return nil
}

func (s *RedisStore) ListSignalIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.signalIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list signal ids: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) ListSignals(ctx context.Context, since time.Time) ([]*models.SignalRecord, error) {
	ids, err := s.ListSignalIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SignalRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetSignal(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrSignalNotFound) {
				continue
			}
			return nil, err
		}
		if !since.IsZero() && rec.RecordedAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) PutQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.queueKey(entry.Key()), data, 0)
	pipe.SAdd(ctx, s.queueIndexKey(), entry.Key())
	pipe.SAdd(ctx, s.queueSigKey(entry.SignalID), entry.ExecutorID)
	if entry.Status == models.QueuePending {
		pipe.ZAdd(ctx, s.queueDueKey(), redis.Z{
			Score:  float64(entry.NextCheckAt.Unix()),
			Member: entry.Key(),
		})
	} else {
		pipe.ZRem(ctx, s.queueDueKey(), entry.Key())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put queue entry: %w", err)
	}
	return nil
}

func (s *RedisStore) GetQueueEntry(ctx context.Context, signalID, executorID string) (*models.QueueEntry, error) {
	return s.getQueueEntryByKey(ctx, signalID+":"+executorID)
}

func (s *RedisStore) getQueueEntryByKey(ctx context.Context, key string) (*models.QueueEntry, error) {
	data, err := s.client.Get(ctx, s.queueKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrQueueEntryNotFound
		}
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	var entry models.QueueEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal queue entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) DueQueueEntries(ctx context.Context, now time.Time, limit int) ([]*models.QueueEntry, error) {
	zr := &redis.ZRangeBy{Min: "0", Max: strconv.FormatInt(now.Unix(), 10)}
	if limit > 0 {
		zr.Count = int64(limit)
	}
	keys, err := s.client.ZRangeByScore(ctx, s.queueDueKey(), zr).Result()
	if err != nil {
		return nil, fmt.Errorf("due queue entries: %w", err)
	}
	out := make([]*models.QueueEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := s.getQueueEntryByKey(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrQueueEntryNotFound) {
				s.client.ZRem(ctx, s.queueDueKey(), key)
				continue
			}
			return nil, err
		}
		if entry.Status == models.QueuePending {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *RedisStore) QueueEntriesByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error) {
	keys, err := s.client.SMembers(ctx, s.queueIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("queue index: %w", err)
	}
	out := make([]*models.QueueEntry, 0)
	for _, key := range keys {
		entry, err := s.getQueueEntryByKey(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrQueueEntryNotFound) {
				continue
			}
			return nil, err
		}
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *RedisStore) CountActiveQueueEntries(ctx context.Context, signalID string) (int, error) {
	executorIDs, err := s.client.SMembers(ctx, s.queueSigKey(signalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue signal index: %w", err)
	}
	n := 0
	for _, executorID := range executorIDs {
		entry, err := s.GetQueueEntry(ctx, signalID, executorID)
		if err != nil {
			if errors.Is(err, models.ErrQueueEntryNotFound) {
				continue
			}
			return 0, err
		}
		if entry.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ domrepo.RecordStore = (*RedisStore)(nil)
