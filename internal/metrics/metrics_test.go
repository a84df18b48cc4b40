package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMiddleware_CountsRequests(t *testing.T) {
	e := echo.New()
	e.Use(PrometheusMiddleware())
	e.GET("/api/uaid/:uaid", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/uaid/:uaid", "204"))

	req := httptest.NewRequest(http.MethodGet, "/api/uaid/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/uaid/:uaid", "204"))
	assert.Equal(t, before+1, after)
}

func TestPrometheusMiddleware_RecordsHandlerErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(PrometheusMiddleware())
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "502"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "502")))
}

func TestObserveScan(t *testing.T) {
	before := testutil.ToFloat64(ScansTotal.WithLabelValues("created"))
	ObserveScan("created", 250*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ScansTotal.WithLabelValues("created")))

	SetSnapshotRecords(4, 2)
	assert.Equal(t, float64(4), testutil.ToFloat64(SnapshotRecords.WithLabelValues("owned")))
	assert.Equal(t, float64(2), testutil.ToFloat64(SnapshotRecords.WithLabelValues("removed")))
}
