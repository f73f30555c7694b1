package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
)

// ClickHouseArchive inserts terminal signal records into an append-only
// analytics table for offline research. It is write-only from this service.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates the archive against an existing connection
// pool. The table must exist (schema init happens in the DI layer).
func NewClickHouseArchive(db *sql.DB, table string) *ClickHouseArchive {
	return &ClickHouseArchive{db: db, table: table}
}

// ArchiveSchema returns idempotent DDL for the archive table.
func ArchiveSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			signal_id String,
			symbol String,
			action String,
			entry_price Float64,
			target_price Float64,
			stop_price Float64,
			confidence Float64,
			strategy String,
			service_scope String,
			regime String,
			status String,
			status_reason String,
			order_id String,
			profit_loss_pct Float64,
			hash String,
			generated_at DateTime,
			recorded_at DateTime,
			archived_at DateTime
		) ENGINE=MergeTree ORDER BY (symbol, recorded_at)`, database, table),
	}
}

func (a *ClickHouseArchive) ArchiveSignal(ctx context.Context, rec *models.SignalRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(signal_id, symbol, action, entry_price, target_price, stop_price,
		 confidence, strategy, service_scope, regime, status, status_reason,
		 order_id, profit_loss_pct, hash, generated_at, recorded_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, a.table)

	entry, _ := rec.EntryPrice.Float64()
	target, _ := rec.TargetPrice.Float64()
	stop, _ := rec.StopPrice.Float64()

	_, err := a.db.ExecContext(ctx, q,
		rec.SignalID,
		rec.Symbol,
		string(rec.Action),
		entry,
		target,
		stop,
		rec.Confidence,
		rec.Strategy,
		strings.Join(rec.ServiceScope, ","),
		rec.Regime,
		string(rec.Status),
		rec.StatusReason,
		rec.OrderID,
		rec.ProfitLossPct,
		rec.Hash,
		rec.GeneratedAt.UTC(),
		rec.RecordedAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive signal: %w", err)
	}
	return nil
}

var _ domrepo.Archive = (*ClickHouseArchive)(nil)
