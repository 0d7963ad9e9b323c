package api

import (
	"time"

	models "ArbPull/internal/domain/models"
	"ArbPull/internal/usecase"
	"ArbPull/pkg/cache"
	xhttp "ArbPull/pkg/http"
	xlogger "ArbPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ArbitrageHandler exposes scan control and opportunity listing over HTTP.
type ArbitrageHandler struct {
	logger      *xlogger.Logger
	scanner     *usecase.Scanner
	coordinator *usecase.Coordinator
	cache       cache.Service
	startedAt   time.Time
}

// NewArbitrageHandler creates the API handler.
func NewArbitrageHandler(logger *xlogger.Logger, scanner *usecase.Scanner, coordinator *usecase.Coordinator, cacheSvc cache.Service) *ArbitrageHandler {
	return &ArbitrageHandler{
		logger:      logger.With("api"),
		scanner:     scanner,
		coordinator: coordinator,
		cache:       cacheSvc,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes wires the handler into Echo.
func (h *ArbitrageHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/scan", h.Scan)
	g.GET("/opportunities", h.Opportunities)
	g.GET("/sports", h.Sports)
	g.GET("/games", h.Games)
	g.GET("/status", h.Status)
	g.DELETE("/cache", h.ClearCache)
}

// Scan triggers a synchronous scan pass.
func (h *ArbitrageHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.scanner.RunPass(c.Request().Context(), *req)
	if err != nil {
		if err == usecase.ErrScanInProgress {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("scan already in progress"))
		}
		if usecase.IsQuotaExhausted(err) {
			return xhttp.AppErrorResponse(c, xhttp.QuotaExhaustedError("request budget exhausted").WithError(err))
		}
		h.logger.Error("scan pass failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, report)
}

// Opportunities lists opportunities from the latest scan, filtered.
func (h *ArbitrageHandler) Opportunities(c echo.Context) error {
	query := &models.OpportunitiesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, query); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report := h.scanner.Latest()
	if report == nil {
		return xhttp.ListResponse(c, []models.ArbitrageOpportunity{}, 0)
	}

	filtered := make([]models.ArbitrageOpportunity, 0, len(report.Opportunities))
	for _, opp := range report.Opportunities {
		if query.Sport != "" && opp.SportKey != query.Sport {
			continue
		}
		if opp.ProfitMargin < query.MinMargin {
			continue
		}
		filtered = append(filtered, opp)
	}

	total := int64(len(filtered))
	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	return xhttp.ListResponse(c, filtered, total)
}

// Sports returns the provider's sports catalogue, served from cache when
// possible.
func (h *ArbitrageHandler) Sports(c echo.Context) error {
	sports, err := h.coordinator.FetchSports(c.Request().Context())
	if err != nil {
		if usecase.IsQuotaExhausted(err) {
			return xhttp.AppErrorResponse(c, xhttp.QuotaExhaustedError("request budget exhausted").WithError(err))
		}
		h.logger.Error("fetch sports failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sports)
}

// Games returns the upcoming game list for one sport, without prices.
func (h *ArbitrageHandler) Games(c echo.Context) error {
	sport := c.QueryParam("sport")
	if sport == "" {
		return xhttp.BadRequestResponse(c, &xhttp.ValidationError{
			Code:    "ERR_REQUIRED",
			Field:   "sport",
			Message: "sport query parameter is required",
		})
	}

	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0)

	games, err := h.coordinator.FetchGames(c.Request().Context(), sport)
	if err != nil {
		if usecase.IsQuotaExhausted(err) {
			return xhttp.AppErrorResponse(c, xhttp.QuotaExhaustedError("request budget exhausted").WithError(err))
		}
		h.logger.Error("fetch games failed",
			xlogger.String("sport", sport),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}

	total := int64(len(games))
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}

	return xhttp.ListResponse(c, games, total)
}

// ClearCache drops every cached entry. The next scan pays full provider
// cost, so this is for operators who know the cache has gone bad.
func (h *ArbitrageHandler) ClearCache(c echo.Context) error {
	if err := h.cache.Clear(c.Request().Context()); err != nil {
		h.logger.Error("clear cache failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.logger.Info("cache cleared")
	return xhttp.SuccessResponse(c, map[string]string{"status": "cleared"})
}

// statusResponse is the GET /api/status body.
type statusResponse struct {
	Uptime       string             `json:"uptime"`
	ScanRunning  bool               `json:"scan_running"`
	Quota        models.QuotaState  `json:"quota"`
	Pool         models.PoolStats   `json:"pool"`
	Cache        cache.Stats        `json:"cache"`
	CacheHitRate float64            `json:"cache_hit_rate"`
	LastScan     *models.ScanReport `json:"last_scan,omitempty"`
}

// Status reports quota, pool, cache, and last scan state.
func (h *ArbitrageHandler) Status(c echo.Context) error {
	stats := h.cache.Stats()
	return xhttp.SuccessResponse(c, statusResponse{
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		ScanRunning:  h.scanner.Running(),
		Quota:        h.coordinator.QuotaState(),
		Pool:         h.scanner.PoolStats(),
		Cache:        stats,
		CacheHitRate: stats.HitRatio(),
		LastScan:     h.scanner.Latest(),
	})
}

// Health is the liveness probe.
func (h *ArbitrageHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
