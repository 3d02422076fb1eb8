package api

import (
	"errors"
	"time"

	models "LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	svcmetrics "LevelWatch/internal/service/metrics"
	"LevelWatch/internal/usecase"
	xhttp "LevelWatch/pkg/http"
	xlogger "LevelWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RunsEchoHandler exposes the backtest run lifecycle over HTTP.
type RunsEchoHandler struct {
	logger *xlogger.Logger
	runner *usecase.BacktestRunner
}

func NewRunsEchoHandler(logger *xlogger.Logger, runner *usecase.BacktestRunner) *RunsEchoHandler {
	svcmetrics.Register()
	return &RunsEchoHandler{logger: logger, runner: runner}
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/runs", h.Create)
	g.GET("/runs/:id", h.Get)
	g.GET("/runs/:id/trades", h.Trades)
	g.GET("/runs/:id/equity", h.Equity)
}

func (h *RunsEchoHandler) Create(c echo.Context) error {
	start := time.Now()
	defer func() {
		svcmetrics.APILatency.WithLabelValues("runs_create").Observe(time.Since(start).Seconds())
	}()

	req := &models.CreateRunRequest{}
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
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c, "from must be before to")
	}
	for _, t := range req.Tickers {
		if !models.ValidSymbol(t) {
			return xhttp.BadRequestResponse(c, "invalid ticker: "+t)
		}
	}

	run := &models.BacktestRun{
		Tickers:      req.Tickers,
		TimeframeMin: req.TimeframeMin,
		From:         from.UTC(),
		To:           to.UTC(),
		LevelSource:  models.LevelSource(req.LevelSource),
		EntryMode:    models.EntryMode(req.EntryMode),
		Tag:          req.Tag,
	}
	created, err := h.runner.CreateRun(c.Request().Context(), run)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("runs_create").Inc()
		h.logger.Error("create run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, created)
}

func (h *RunsEchoHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "id required")
	}
	run, err := h.runner.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "run not found")
		}
		svcmetrics.APIErrors.WithLabelValues("runs_get").Inc()
		h.logger.Error("get run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	resp := map[string]interface{}{"run": run}
	if run.Status == models.RunDone {
		if m, err := h.runner.GetMetrics(c.Request().Context(), id); err == nil {
			resp["metrics"] = m
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *RunsEchoHandler) Trades(c echo.Context) error {
	req := &models.RunTradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := h.runner.GetRun(c.Request().Context(), req.ID); err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "run not found")
		}
		return xhttp.AppErrorResponse(c, err)
	}
	trades, err := h.runner.ListTrades(c.Request().Context(), req.ID, req.Limit, req.Offset)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("runs_trades").Inc()
		h.logger.Error("list trades error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

func (h *RunsEchoHandler) Equity(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "id required")
	}
	if _, err := h.runner.GetRun(c.Request().Context(), id); err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "run not found")
		}
		return xhttp.AppErrorResponse(c, err)
	}
	points, err := h.runner.ListEquity(c.Request().Context(), id)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("runs_equity").Inc()
		h.logger.Error("list equity error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, points, int64(len(points)))
}
