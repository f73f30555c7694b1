package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

// maxFailedDetail bounds how many tampered ids a report carries.
const maxFailedDetail = 10

// IntegrityMonitor re-derives the canonical hash of stored signals and
// compares it against the hash captured at write time. Detection only; it
// never repairs or deletes a record.
type IntegrityMonitor struct {
	store   domrepo.RecordStore
	journal domrepo.Journal
	alerts  domrepo.AlertPublisher
	metrics domrepo.Metrics
	logger  *applogger.Logger

	mu   sync.Mutex
	last *models.IntegrityReport

	cancel context.CancelFunc
	done   chan struct{}
}

// NewIntegrityMonitor creates the monitor.
func NewIntegrityMonitor(store domrepo.RecordStore, journal domrepo.Journal, alerts domrepo.AlertPublisher, metrics domrepo.Metrics, lgr *applogger.Logger) *IntegrityMonitor {
	return &IntegrityMonitor{
		store:   store,
		journal: journal,
		alerts:  alerts,
		metrics: metrics,
		logger:  lgr,
	}
}

// RunCheck verifies sampleSize randomly chosen records, or every record when
// sampleSize is zero or negative. The report is journaled and kept as the
// latest; mismatches raise a critical alert.
func (m *IntegrityMonitor) RunCheck(ctx context.Context, sampleSize int) (*models.IntegrityReport, error) {
	start := time.Now()

	ids, err := m.store.ListSignalIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	total := len(ids)
	full := sampleSize <= 0 || sampleSize >= total
	if !full {
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		ids = ids[:sampleSize]
	}

	checked := 0
	var failed []string
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rec, err := m.store.GetSignal(ctx, id)
		if err != nil {
			m.logger.Warn("integrity read failed",
				applogger.String("signal_id", id),
				applogger.Error(err))
			continue
		}
		checked++
		recomputed := rec.Signal.CanonicalHash()
		if recomputed == rec.Hash {
			continue
		}
		failed = append(failed, id)
		m.metrics.RecordTamper()
		m.logger.Error("hash mismatch detected",
			applogger.String("signal_id", id),
			applogger.String("stored", rec.Hash),
			applogger.String("recomputed", recomputed))
	}

	elapsed := time.Since(start)
	report := &models.IntegrityReport{
		Success:         len(failed) == 0,
		Full:            full,
		Total:           total,
		Checked:         checked,
		Failed:          len(failed),
		DurationSeconds: elapsed.Seconds(),
		RanAt:           start.UTC(),
	}
	if n := len(failed); n > 0 {
		if n > maxFailedDetail {
			n = maxFailedDetail
		}
		report.FailedSignals = failed[:n]
	}
	if secs := elapsed.Seconds(); secs > 0 {
		report.ThroughputPerS = float64(checked) / secs
	}

	m.metrics.RecordIntegrityCheck(checked, len(failed))
	if err := m.journal.AppendReport(ctx, report); err != nil {
		m.metrics.RecordError("journal_append")
		m.logger.Error("integrity report journal failed", applogger.Error(err))
	}

	if len(failed) > 0 {
		m.logger.Error("ledger integrity violated",
			applogger.Int("checked", checked),
			applogger.Int("failed", len(failed)),
			applogger.Strings("signal_ids", report.FailedSignals))
		if err := m.alerts.Publish(ctx, "integrity_violation", report); err != nil {
			m.metrics.RecordError("alert_publish")
			m.logger.Warn("integrity alert publish failed", applogger.Error(err))
		}
	} else {
		m.logger.Info("integrity check passed",
			applogger.Int("checked", checked),
			applogger.Bool("full", full))
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent report, or nil before the first run.
func (m *IntegrityMonitor) LastReport() *models.IntegrityReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Start schedules periodic sampled checks and a daily full scan.
func (m *IntegrityMonitor) Start(ctx context.Context, sampleInterval time.Duration, sampleSize int, fullInterval time.Duration) {
	if sampleInterval <= 0 {
		sampleInterval = time.Hour
	}
	if fullInterval <= 0 {
		fullInterval = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		sample := time.NewTicker(sampleInterval)
		defer sample.Stop()
		fullScan := time.NewTicker(fullInterval)
		defer fullScan.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sample.C:
				if _, err := m.RunCheck(ctx, sampleSize); err != nil && ctx.Err() == nil {
					m.logger.Error("scheduled integrity check failed", applogger.Error(err))
				}
			case <-fullScan.C:
				if _, err := m.RunCheck(ctx, 0); err != nil && ctx.Err() == nil {
					m.logger.Error("scheduled full scan failed", applogger.Error(err))
				}
			}
		}
	}()

	m.logger.Info("integrity monitor started",
		applogger.Duration("sample_interval_ms", sampleInterval),
		applogger.Int("sample_size", sampleSize),
		applogger.Duration("full_interval_ms", fullInterval))
}

// Stop halts the scheduler and waits for the in-flight check to finish.
func (m *IntegrityMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
