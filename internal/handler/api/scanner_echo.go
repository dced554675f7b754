package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/internal/service/ratelimit"
	xhttp "PulseScan/pkg/http"
	xlogger "PulseScan/pkg/logger"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// SettingsWriter persists runtime settings changed through the API.
type SettingsWriter interface {
	Save(ctx context.Context, s models.ScannerSettings) error
}

// ScannerEchoHandler serves the read API over the scanner's stores.
type ScannerEchoHandler struct {
	logger     *xlogger.Logger
	triggers   domrepo.TriggerStore
	strategies domrepo.StrategyStore
	audit      domrepo.AuditLog

	settings   service.SettingsSource
	writer     SettingsWriter
	adminToken string

	checks  map[string]HealthCheck
	limiter *ratelimit.Limiter
	rps     float64
}

type Option func(*ScannerEchoHandler)

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, fn HealthCheck) Option {
	return func(h *ScannerEchoHandler) {
		if fn != nil {
			h.checks[name] = fn
		}
	}
}

// WithSettings exposes GET /api/settings, and PUT when token is non-empty.
func WithSettings(src service.SettingsSource, w SettingsWriter, token string) Option {
	return func(h *ScannerEchoHandler) {
		h.settings = src
		h.writer = w
		h.adminToken = token
	}
}

// WithRateLimit limits each client IP to rps requests per second. Zero disables it.
func WithRateLimit(l *ratelimit.Limiter, rps float64) Option {
	return func(h *ScannerEchoHandler) {
		h.limiter = l
		h.rps = rps
	}
}

func NewScannerEchoHandler(
	logger *xlogger.Logger,
	triggers domrepo.TriggerStore,
	strategies domrepo.StrategyStore,
	audit domrepo.AuditLog,
	opts ...Option,
) *ScannerEchoHandler {
	h := &ScannerEchoHandler{
		logger:     logger,
		triggers:   triggers,
		strategies: strategies,
		audit:      audit,
		checks:     make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ScannerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.GET("/triggers", h.Triggers)
	g.GET("/strategies", h.Strategies)
	g.GET("/breakers", h.Breakers)
	if h.settings != nil {
		g.GET("/settings", h.Settings)
		if h.writer != nil && h.adminToken != "" {
			g.PUT("/settings", h.UpdateSettings, h.requireAdmin)
		}
	}
}

func (h *ScannerEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}
	return xhttp.DataResponse(c, status, components)
}

func (h *ScannerEchoHandler) Triggers(c echo.Context) error {
	req := &models.TriggersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.triggers.ListTriggers(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("list triggers", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("trigger store unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ScannerEchoHandler) Strategies(c echo.Context) error {
	req := &models.StrategiesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	all, err := h.strategies.ListActiveStrategies(c.Request().Context(), models.ActiveStatuses)
	if err != nil {
		h.logger.Error("list strategies", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("strategy store unavailable").WithError(err))
	}

	rows := make([]models.Strategy, 0, len(all))
	for _, s := range all {
		if req.Symbol == "" || s.Symbol == req.Symbol {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ScannerEchoHandler) Breakers(c echo.Context) error {
	req := &models.BreakersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.audit.ListCircuitBreakers(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("list circuit breakers", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("audit log unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

type settingsView struct {
	Status     models.ScannerStatus `json:"status,omitempty"`
	Pairs      []string             `json:"pairs,omitempty"`
	Thresholds *models.Thresholds   `json:"thresholds,omitempty"`
	Errors     map[string]string    `json:"errors,omitempty"`
}

// Settings reports what the settings source holds right now. A field that
// cannot be read is reported under errors instead of failing the request.
func (h *ScannerEchoHandler) Settings(c echo.Context) error {
	ctx := c.Request().Context()
	view := settingsView{Errors: map[string]string{}}

	if st, err := h.settings.ScannerStatus(ctx); err != nil {
		view.Errors["status"] = err.Error()
	} else {
		view.Status = st
	}
	if pairs, err := h.settings.MonitoredPairs(ctx); err != nil {
		view.Errors["pairs"] = err.Error()
	} else {
		view.Pairs = pairs
	}
	if th, err := h.settings.Thresholds(ctx); err != nil {
		view.Errors["thresholds"] = err.Error()
	} else {
		view.Thresholds = &th
	}
	if len(view.Errors) == 0 {
		view.Errors = nil
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *ScannerEchoHandler) UpdateSettings(c echo.Context) error {
	req := &models.SettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.writer.Save(c.Request().Context(), req.Settings()); err != nil {
		h.logger.Error("save settings", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("settings store unavailable").WithError(err))
	}
	h.logger.Info("scanner settings updated",
		xlogger.String("status", req.Status),
		xlogger.Int("pairs", len(req.Pairs)),
	)
	return h.Settings(c)
}

func (h *ScannerEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil || h.rps <= 0 {
			return next(c)
		}
		if !h.limiter.Allow("api:"+c.RealIP(), h.rps, h.rps) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		return next(c)
	}
}

func (h *ScannerEchoHandler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("invalid admin token"))
		}
		return next(c)
	}
}

var _ xhttp.Handler = (*ScannerEchoHandler)(nil)
