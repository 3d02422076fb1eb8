package api

import (
	"time"

	models "LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	svcmetrics "LevelWatch/internal/service/metrics"
	"LevelWatch/internal/usecase"
	xhttp "LevelWatch/pkg/http"
	xlogger "LevelWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// LiveEchoHandler exposes the live engine surface: snapshot, recent
// alerts, historical candles, and a health probe.
type LiveEchoHandler struct {
	logger   *xlogger.Logger
	snapshot *usecase.SnapshotUseCase
	candles  *usecase.CandlesUseCase
	alerts   *usecase.AlertHistory
	barStore domrepo.BarStore
	streamUp func() bool
}

func NewLiveEchoHandler(
	logger *xlogger.Logger,
	snapshot *usecase.SnapshotUseCase,
	candles *usecase.CandlesUseCase,
	alerts *usecase.AlertHistory,
	barStore domrepo.BarStore,
	streamUp func() bool,
) *LiveEchoHandler {
	svcmetrics.Register()
	return &LiveEchoHandler{
		logger:   logger,
		snapshot: snapshot,
		candles:  candles,
		alerts:   alerts,
		barStore: barStore,
		streamUp: streamUp,
	}
}

func (h *LiveEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/snapshot", h.Snapshot)
	g.GET("/alerts", h.Alerts)
	g.GET("/candles", h.Candles)
	g.GET("/healthz", h.Health)
}

func (h *LiveEchoHandler) Snapshot(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	}()

	snap, err := h.snapshot.Get(c.Request().Context())
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("snapshot").Inc()
		h.logger.Error("snapshot error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, snap)
}

func (h *LiveEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	list := h.alerts.Recent(req.Limit, req.Symbol, models.AlertKind(req.Kind))
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *LiveEchoHandler) Candles(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("candles").Observe(time.Since(start).Seconds())
	}()

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xhttp.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, "from must be RFC3339 or unix seconds")
	}
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "to must be RFC3339 or unix seconds")
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("candles").Inc()
		h.logger.Error("candles error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *LiveEchoHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	code := 200

	if h.streamUp != nil && !h.streamUp() {
		status["stream"] = "down"
		status["status"] = "degraded"
	}
	if h.barStore != nil {
		if err := h.barStore.Health(c.Request().Context()); err != nil {
			status["store"] = "down"
			status["status"] = "degraded"
		}
	}
	return xhttp.DataResponse(c, code, status)
}
