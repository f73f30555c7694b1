package models

import "errors"

// Closed error set for ledger and distribution failures. Callers branch with
// errors.Is instead of string matching.
var (
	// ErrDuplicateSignal means the signal id is already recorded. The
	// caller treats it as an idempotent no-op.
	ErrDuplicateSignal = errors.New("duplicate signal")

	// ErrInvalidTransition means a terminal record was asked to move
	// backward or sideways.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSignalNotFound means no ledger entry exists for the id.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrExecutorDisabled means the client kill-switch is on; no network
	// call was made.
	ErrExecutorDisabled = errors.New("executor disabled")

	// ErrQueueEntryNotFound means no retry entry exists for the key.
	ErrQueueEntryNotFound = errors.New("queue entry not found")
)

// ErrorKind classifies executor call failures for retry decisions and
// metrics labels.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRemoteRejected  ErrorKind = "remote_rejected"
	KindConnectionError ErrorKind = "connection_error"
	KindDisabled        ErrorKind = "disabled"
	KindIneligible      ErrorKind = "ineligible"
)
