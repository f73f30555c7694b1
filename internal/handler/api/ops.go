package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	"SigRelay/internal/service/ratelimit"
	"SigRelay/internal/usecase"
	xhttp "SigRelay/pkg/http"
	xlogger "SigRelay/pkg/logger"
)

const (
	submitBurst     = 20
	submitPerSecond = 10
)

// OpsHandler is the operator-facing HTTP surface: signal injection and
// inspection, risk state, integrity checks.
type OpsHandler struct {
	logger      *xlogger.Logger
	ledger      *usecase.Ledger
	distributor *usecase.Distributor
	risk        *usecase.RiskMonitor
	integrity   *usecase.IntegrityMonitor
	store       domrepo.RecordStore
	limiter     *ratelimit.Limiter
}

func NewOpsHandler(logger *xlogger.Logger, ledger *usecase.Ledger, distributor *usecase.Distributor, risk *usecase.RiskMonitor, integrity *usecase.IntegrityMonitor, store domrepo.RecordStore) *OpsHandler {
	return &OpsHandler{
		logger:      logger,
		ledger:      ledger,
		distributor: distributor,
		risk:        risk,
		integrity:   integrity,
		store:       store,
		limiter:     ratelimit.New(),
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/v1")
	g.POST("/signals", h.SubmitSignal)
	g.GET("/signals/:id", h.GetSignal)
	g.POST("/signals/:id/cancel", h.CancelSignal)
	g.POST("/signals/:id/outcome", h.RecordOutcome)
	g.GET("/stats", h.Stats)
	g.GET("/risk", h.RiskStates)
	g.GET("/risk/:executor", h.RiskState)
	g.POST("/risk/:executor/reset", h.ResetRisk)
	g.POST("/integrity/check", h.RunIntegrityCheck)
	g.GET("/integrity/report", h.IntegrityReport)
}

func (h *OpsHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("store health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("store unavailable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *OpsHandler) SubmitSignal(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), submitBurst, submitPerSecond) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("signal submission rate exceeded"))
	}

	req := &models.SubmitSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig := req.ToSignal()
	ctx := c.Request().Context()

	if _, err := h.ledger.Record(ctx, sig); err != nil {
		if errors.Is(err, models.ErrDuplicateSignal) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("signal already recorded: "+sig.SignalID))
		}
		h.logger.Error("record signal failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	results, err := h.distributor.Distribute(ctx, sig)
	if err != nil {
		h.logger.Error("distribute failed",
			xlogger.String("signal_id", sig.SignalID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	rec, err := h.ledger.Get(ctx, sig.SignalID)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, &models.SubmitSignalResponse{
		SignalID: rec.SignalID,
		Hash:     rec.Hash,
		Status:   rec.Status,
		Results:  results,
	})
}

func (h *OpsHandler) GetSignal(c echo.Context) error {
	rec, err := h.ledger.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrSignalNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %s not found", c.Param("id")))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *OpsHandler) CancelSignal(c echo.Context) error {
	req := &models.CancelSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.ledger.MarkCancelled(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSignalNotFound):
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %s not found", c.Param("id")))
		case errors.Is(err, models.ErrInvalidTransition):
			return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
		default:
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.NoContentResponse(c)
}

func (h *OpsHandler) RecordOutcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.ledger.RecordOutcome(c.Request().Context(), c.Param("id"), req.ExitPrice, req.ProfitLossPct)
	if err != nil {
		if errors.Is(err, models.ErrSignalNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %s not found", c.Param("id")))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *OpsHandler) Stats(c echo.Context) error {
	since := xhttp.ParseTimeDefault(c.QueryParam("since"), time.Now().UTC().Add(-24*time.Hour))
	stats, err := h.ledger.Stats(c.Request().Context(), since)
	if err != nil {
		h.logger.Error("stats failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *OpsHandler) RiskStates(c echo.Context) error {
	states := h.risk.States()
	return xhttp.ListResponse(c, states, int64(len(states)))
}

func (h *OpsHandler) RiskState(c echo.Context) error {
	st, err := h.risk.State(c.Param("executor"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("executor %s not tracked", c.Param("executor")))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *OpsHandler) ResetRisk(c echo.Context) error {
	if err := h.risk.Reset(c.Request().Context(), c.Param("executor")); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("executor %s not tracked", c.Param("executor")))
	}
	h.logger.Info("risk reset via api", xlogger.String("executor_id", c.Param("executor")))
	return xhttp.NoContentResponse(c)
}

func (h *OpsHandler) RunIntegrityCheck(c echo.Context) error {
	sampleSize := xhttp.ParseIntDefault(c.QueryParam("sample_size"), 0)
	report, err := h.integrity.RunCheck(c.Request().Context(), sampleSize)
	if err != nil {
		h.logger.Error("integrity check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *OpsHandler) IntegrityReport(c echo.Context) error {
	report := h.integrity.LastReport()
	if report == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no integrity check has run yet"))
	}
	return xhttp.SuccessResponse(c, report)
}
