package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	domsvc "SigRelay/internal/domain/service"
	applogger "SigRelay/pkg/logger"
)

// RiskLimits are the compliance thresholds applied to every executor.
type RiskLimits struct {
	MaxDrawdownPct         float64
	DailyLossLimitPct      float64
	MaxPositionSizePct     float64
	MaxCorrelatedPositions int
}

// Escalation fractions of a limit: crossing 50% is WARNING, 80% CRITICAL,
// 100% BREACH (halt).
const (
	warnFraction     = 0.5
	criticalFraction = 0.8
)

type account struct {
	mu sync.Mutex
	st *models.RiskState
}

// RiskMonitor tracks drawdown, daily P&L and exposure per executor and halts
// trading on breach. Halts are sticky: equity recovery never clears them,
// only an explicit Reset does. One lock per executor, never a global one.
type RiskMonitor struct {
	limits  RiskLimits
	groups  map[string]string // symbol -> correlation group
	alerts  domrepo.AlertPublisher
	metrics domrepo.Metrics
	logger  *applogger.Logger

	mu       sync.Mutex // guards the accounts map only
	accounts map[string]*account
}

// NewRiskMonitor creates the monitor. groups maps each symbol to its
// correlation group name.
func NewRiskMonitor(limits RiskLimits, groups map[string]string, alerts domrepo.AlertPublisher, metrics domrepo.Metrics, lgr *applogger.Logger) *RiskMonitor {
	if groups == nil {
		groups = map[string]string{}
	}
	return &RiskMonitor{
		limits:   limits,
		groups:   groups,
		alerts:   alerts,
		metrics:  metrics,
		logger:   lgr,
		accounts: make(map[string]*account),
	}
}

func (m *RiskMonitor) account(executorID string) *account {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[executorID]
	if !ok {
		acc = &account{st: &models.RiskState{
			ExecutorID:    executorID,
			RiskLevel:     models.RiskNormal,
			OpenPositions: make(map[string]string),
			GroupCounts:   make(map[string]int),
		}}
		m.accounts[executorID] = acc
	}
	return acc
}

// UpdateEquity ingests one equity reading from the executor's account
// stream and re-evaluates the risk level.
func (m *RiskMonitor) UpdateEquity(ctx context.Context, executorID string, equity float64) {
	if equity <= 0 {
		m.metrics.RecordError("equity_invalid")
		return
	}
	acc := m.account(executorID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	st := acc.st
	m.rollDay(st, equity)

	st.AccountEquity = equity
	if equity > st.PeakEquity {
		st.PeakEquity = equity
	}
	if st.PeakEquity > 0 {
		st.DrawdownPct = (st.PeakEquity - equity) / st.PeakEquity * 100
	}
	if st.DayStartEquity > 0 {
		st.DailyPnlPct = (equity - st.DayStartEquity) / st.DayStartEquity * 100
	}
	st.UpdatedAt = time.Now().UTC()

	m.evaluate(ctx, st)
}

// rollDay resets daily fields at the first update of a new UTC trading day.
func (m *RiskMonitor) rollDay(st *models.RiskState, equity float64) {
	day := time.Now().UTC().Format("2006-01-02")
	if st.Day == day {
		return
	}
	st.Day = day
	st.DayStartEquity = equity
	st.DailyPnlPct = 0
	if st.PeakEquity == 0 {
		st.PeakEquity = equity
	}
}

// RecordPositionChange ingests a fill confirmation: position opened or
// closed, with its notional value and the account's buying power.
func (m *RiskMonitor) RecordPositionChange(ctx context.Context, executorID string, ev domsvc.PositionChange) {
	group := ev.Group
	if group == "" {
		group = m.groups[ev.Symbol]
	}

	acc := m.account(executorID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	st := acc.st
	if ev.Opened {
		st.OpenPositions[ev.Symbol] = group
		if group != "" {
			st.GroupCounts[group]++
		}
	} else {
		if prev, ok := st.OpenPositions[ev.Symbol]; ok {
			delete(st.OpenPositions, ev.Symbol)
			if prev != "" && st.GroupCounts[prev] > 0 {
				st.GroupCounts[prev]--
			}
		}
	}
	st.UpdatedAt = time.Now().UTC()

	if ev.Opened && ev.BuyingPower > 0 && m.limits.MaxPositionSizePct > 0 {
		sizePct := ev.Value / ev.BuyingPower * 100
		if sizePct >= m.limits.MaxPositionSizePct {
			m.halt(ctx, st, fmt.Sprintf("position size limit exceeded: %s %.2f%% >= %.2f%%",
				ev.Symbol, sizePct, m.limits.MaxPositionSizePct))
		} else if sizePct >= m.limits.MaxPositionSizePct*criticalFraction && st.RiskLevel.Severity() < models.RiskCritical.Severity() {
			st.RiskLevel = models.RiskCritical
			m.logger.Warn("position size near limit",
				applogger.String("executor_id", executorID),
				applogger.String("symbol", ev.Symbol))
		}
	}
	m.metrics.RecordRiskLevel(executorID, st.RiskLevel.Severity())
}

// evaluate recomputes the risk level from drawdown and daily loss.
// Called with the account lock held.
func (m *RiskMonitor) evaluate(ctx context.Context, st *models.RiskState) {
	if st.TradingHalted {
		// Sticky: nothing downgrades a halted account.
		st.RiskLevel = models.RiskBreach
		m.metrics.RecordRiskLevel(st.ExecutorID, st.RiskLevel.Severity())
		return
	}

	worst := 0.0
	reason := ""
	if m.limits.MaxDrawdownPct > 0 && st.DrawdownPct > 0 {
		frac := st.DrawdownPct / m.limits.MaxDrawdownPct
		if frac > worst {
			worst = frac
			reason = fmt.Sprintf("max drawdown exceeded: %.2f%% >= %.2f%%", st.DrawdownPct, m.limits.MaxDrawdownPct)
		}
	}
	if m.limits.DailyLossLimitPct > 0 && st.DailyPnlPct < 0 {
		frac := -st.DailyPnlPct / m.limits.DailyLossLimitPct
		if frac > worst {
			worst = frac
			reason = fmt.Sprintf("daily loss limit exceeded: %.2f%% <= -%.2f%%", st.DailyPnlPct, m.limits.DailyLossLimitPct)
		}
	}

	switch {
	case worst >= 1:
		m.halt(ctx, st, reason)
	case worst >= criticalFraction:
		st.RiskLevel = models.RiskCritical
	case worst >= warnFraction:
		st.RiskLevel = models.RiskWarning
	default:
		st.RiskLevel = models.RiskNormal
	}
	m.metrics.RecordRiskLevel(st.ExecutorID, st.RiskLevel.Severity())
}

// halt marks the account BREACH and stops all distribution to it.
// Called with the account lock held.
func (m *RiskMonitor) halt(ctx context.Context, st *models.RiskState, reason string) {
	if st.TradingHalted {
		return
	}
	st.RiskLevel = models.RiskBreach
	st.TradingHalted = true
	st.HaltReason = reason

	m.logger.Error("trading halted",
		applogger.String("executor_id", st.ExecutorID),
		applogger.String("reason", reason))
	m.metrics.RecordRiskLevel(st.ExecutorID, st.RiskLevel.Severity())

	if err := m.alerts.Publish(ctx, "risk_halt", st.Clone()); err != nil {
		m.metrics.RecordError("alert_publish")
		m.logger.Warn("halt alert publish failed", applogger.Error(err))
	}
}

// Eligible is the single distribution-time check: scope, confidence, regime
// exclusion, halt state and correlation headroom for the signal's group.
func (m *RiskMonitor) Eligible(profile *models.ExecutorProfile, sig *models.Signal) (bool, string) {
	if !sig.InScope(profile.Family) {
		return false, fmt.Sprintf("scope mismatch: %s not in %v", profile.Family, sig.ServiceScope)
	}
	if sig.Confidence < profile.MinConfidence {
		return false, fmt.Sprintf("confidence %.1f below minimum %.1f", sig.Confidence, profile.MinConfidence)
	}
	if profile.ExcludesRegime(sig.Regime) {
		return false, fmt.Sprintf("regime %q excluded", sig.Regime)
	}

	acc := m.account(profile.ID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	st := acc.st
	if st.TradingHalted {
		return false, "trading halted: " + st.HaltReason
	}
	if sig.Action == models.ActionBuy && m.limits.MaxCorrelatedPositions > 0 {
		if group := m.groups[sig.Symbol]; group != "" {
			if st.GroupCounts[group] >= m.limits.MaxCorrelatedPositions {
				return false, fmt.Sprintf("correlation group %q at limit (%d open)", group, st.GroupCounts[group])
			}
		}
	}
	return true, ""
}

// Reset clears a halt. Operator action only; the peak and day-start equity
// rebase to the current reading so the account restarts from a clean slate.
func (m *RiskMonitor) Reset(ctx context.Context, executorID string) error {
	m.mu.Lock()
	acc, ok := m.accounts[executorID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown executor %q", executorID)
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	st := acc.st
	st.TradingHalted = false
	st.HaltReason = ""
	st.RiskLevel = models.RiskNormal
	if st.AccountEquity > 0 {
		st.PeakEquity = st.AccountEquity
		st.DayStartEquity = st.AccountEquity
	}
	st.DrawdownPct = 0
	st.DailyPnlPct = 0
	st.UpdatedAt = time.Now().UTC()

	m.logger.Info("risk state reset", applogger.String("executor_id", executorID))
	m.metrics.RecordRiskLevel(executorID, st.RiskLevel.Severity())
	if err := m.alerts.Publish(ctx, "risk_reset", st.Clone()); err != nil {
		m.logger.Warn("reset alert publish failed", applogger.Error(err))
	}
	return nil
}

// State returns a copy of one executor's risk state.
// Halted reports whether the executor's account is currently halted. An
// untracked executor is not halted.
func (m *RiskMonitor) Halted(executorID string) bool {
	st, err := m.State(executorID)
	return err == nil && st.TradingHalted
}

func (m *RiskMonitor) State(executorID string) (*models.RiskState, error) {
	m.mu.Lock()
	acc, ok := m.accounts[executorID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown executor %q", executorID)
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.st.Clone(), nil
}

// States returns copies of every tracked executor's risk state.
func (m *RiskMonitor) States() []*models.RiskState {
	m.mu.Lock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	out := make([]*models.RiskState, 0, len(ids))
	for _, id := range ids {
		if st, err := m.State(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

var _ domsvc.AccountSink = (*RiskMonitor)(nil)
