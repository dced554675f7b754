package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/repository"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/pkg/cache"
	xlogger "PulseScan/pkg/logger"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	Rows  json.RawMessage `json:"rows"`
	Total int64           `json:"total"`
}

type fixture struct {
	e          *echo.Echo
	triggers   *repository.MemoryTriggerStore
	strategies *repository.MemoryStrategyStore
	audit      *repository.MemoryAuditLog
	settings   *repository.CacheSettingsSource
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	f := &fixture{
		e:          echo.New(),
		triggers:   repository.NewMemoryTriggerStore(),
		strategies: repository.NewMemoryStrategyStore(),
		audit:      repository.NewMemoryAuditLog(),
		settings:   repository.NewCacheSettingsSource(mc),
	}
	h := NewScannerEchoHandler(xlogger.Nop(), f.triggers, f.strategies, f.audit, opts...)
	h.RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestTriggersListsNewestFirstAndFiltersBySymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		_, err := f.triggers.CreateTrigger(ctx, &models.Trigger{Symbol: sym, Kind: models.TriggerPriceMove, Value: 4})
		require.NoError(t, err)
	}

	rec, env := f.do(t, http.MethodGet, "/api/triggers?symbol=BTCUSDT&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(2), data.Total)

	var rows []models.Trigger
	require.NoError(t, json.Unmarshal(data.Rows, &rows))
	for _, r := range rows {
		assert.Equal(t, "BTCUSDT", r.Symbol)
	}
}

func TestTriggersRejectsOutOfRangeLimit(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/triggers?limit=1000", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Contains(t, string(env.Data), "ERR_LTE")
}

func TestStrategiesOnlyActive(t *testing.T) {
	f := newFixture(t)
	f.strategies.Put(models.Strategy{ID: "a", Symbol: "BTCUSDT", Status: models.StatusInPosition})
	f.strategies.Put(models.Strategy{ID: "b", Symbol: "BTCUSDT", Status: models.StatusCompleted})
	f.strategies.Put(models.Strategy{ID: "c", Symbol: "ETHUSDT", Status: models.StatusWaitingEntry})

	rec, env := f.do(t, http.MethodGet, "/api/strategies?symbol=BTCUSDT", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	var rows []models.Strategy
	require.NoError(t, json.Unmarshal(data.Rows, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
}

func TestBreakers(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.audit.InsertCircuitBreakerLog(context.Background(), models.CircuitBreakerState{
		Symbol: "SOLUSDT", ActivatedAt: now, ExpiresAt: now.Add(30 * time.Minute), ChangePercent: -6,
	}))

	rec, env := f.do(t, http.MethodGet, "/api/breakers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(1), data.Total)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	f := newFixture(t,
		WithHealthCheck("postgres", func(context.Context) error { return nil }),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)

	rec, env := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var comps map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &comps))
	assert.Equal(t, "ok", comps["postgres"])
	assert.Equal(t, "connection refused", comps["redis"])
}

func TestRateLimitPerClient(t *testing.T) {
	now := time.Unix(0, 0)
	lim := ratelimit.NewWithClock(func() time.Time { return now })
	f := newFixture(t, WithRateLimit(lim, 2))

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodGet, "/api/triggers", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := f.do(t, http.MethodGet, "/api/triggers", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSettingsUpdateRequiresToken(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	src := repository.NewCacheSettingsSource(mc)
	f := newFixture(t, WithSettings(src, src, "secret"))

	body := `{"status":"running","pairs":["BTCUSDT"],"volume_ratio":4,"price_percent":2.5}`

	rec, _ := f.do(t, http.MethodPut, "/api/settings", body, map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/settings", body, map[string]string{"X-Admin-Token": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	st, err := src.ScannerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ScannerRunning, st)
	th, err := src.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Thresholds{VolumeRatio: 4, PricePercent: 2.5}, th)
}

func TestSettingsUpdateValidation(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	src := repository.NewCacheSettingsSource(mc)
	f := newFixture(t, WithSettings(src, src, "secret"))

	hdr := map[string]string{"X-Admin-Token": "secret"}

	rec, _ := f.do(t, http.MethodPut, "/api/settings", `{"status":"paused"}`, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/settings", `{"volume_ratio":4}`, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsReadReportsMissingFields(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	src := repository.NewCacheSettingsSource(mc)
	require.NoError(t, src.Save(context.Background(), models.ScannerSettings{Status: models.ScannerStopped}))
	f := newFixture(t, WithSettings(src, nil, ""))

	rec, env := f.do(t, http.MethodGet, "/api/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view settingsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.ScannerStopped, view.Status)
	assert.Contains(t, view.Errors, "pairs")
	assert.Contains(t, view.Errors, "thresholds")

	// no writer: the PUT route is never registered
	rec, _ = f.do(t, http.MethodPut, "/api/settings", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
