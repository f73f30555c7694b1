package models

import "time"

// QueueStatus is the retry-queue lifecycle of one (signal, executor) pair.
type QueueStatus string

const (
	QueuePending   QueueStatus = "PENDING"
	QueueExecuting QueueStatus = "EXECUTING"
	QueueExecuted  QueueStatus = "EXECUTED"
	QueueExpired   QueueStatus = "EXPIRED"
)

// Active reports whether the entry still owns the signal's delivery to its
// executor.
func (s QueueStatus) Active() bool {
	return s == QueuePending || s == QueueExecuting
}

// QueueEntry wraps a signal awaiting retry against one executor. The queue
// processor owns every transition; both sides of a network call are
// persisted so a crash mid-call is recoverable.
type QueueEntry struct {
	SignalID      string      `json:"signal_id"`
	ExecutorID    string      `json:"executor_id"`
	Status        QueueStatus `json:"status"`
	RetryCount    int         `json:"retry_count"`
	CreatedAt     time.Time   `json:"created_at"`
	LastCheckedAt time.Time   `json:"last_checked_at"`
	NextCheckAt   time.Time   `json:"next_check_at"`
}

// Key returns the store key for the entry.
func (e *QueueEntry) Key() string {
	return e.SignalID + ":" + e.ExecutorID
}
