package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRouteAndStatus(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewServerMetrics("test", reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/orders/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "Order not found")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "GET", "404")))
}

func TestShop_NilSafe(t *testing.T) {
	t.Parallel()

	var s *Shop
	assert.NotPanics(t, func() {
		s.OrderPlaced()
		s.OrderCancelled()
		s.StatusChanged("SHIPPED")
		s.StockConflict()
		s.AccountBlocked()
	})
}

func TestHandler_ExposesShopCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewShop(reg)
	s.OrderPlaced()
	s.AccountBlocked()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "storefront_orders_placed_total 1"))
	assert.True(t, strings.Contains(body, "storefront_accounts_blocked_total 1"))
}
