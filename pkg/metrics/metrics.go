package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string, reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler", "method"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware records one sample per request, labelled by route pattern.
func (m *ServerMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.Requests.WithLabelValues(path, c.Request().Method, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(path, c.Request().Method).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

// Shop counts workflow outcomes. A nil *Shop is valid and records nothing.
type Shop struct {
	OrdersPlaced    prometheus.Counter
	OrdersCancelled prometheus.Counter
	StatusChanges   *prometheus.CounterVec
	StockConflicts  prometheus.Counter
	AccountsBlocked prometheus.Counter
}

func NewShop(reg prometheus.Registerer) *Shop {
	s := &Shop{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total", Help: "Orders committed.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_cancelled_total", Help: "Orders cancelled by customers.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_status_changes_total", Help: "Administrative status changes.",
		}, []string{"to"}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_conflicts_total", Help: "Order placements rejected for insufficient stock.",
		}),
		AccountsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "accounts_blocked_total", Help: "Accounts blocked for excessive cancellations.",
		}),
	}
	reg.MustRegister(s.OrdersPlaced, s.OrdersCancelled, s.StatusChanges, s.StockConflicts, s.AccountsBlocked)
	return s
}

func (s *Shop) OrderPlaced() {
	if s != nil {
		s.OrdersPlaced.Inc()
	}
}

func (s *Shop) OrderCancelled() {
	if s != nil {
		s.OrdersCancelled.Inc()
	}
}

func (s *Shop) StatusChanged(to string) {
	if s != nil {
		s.StatusChanges.WithLabelValues(to).Inc()
	}
}

func (s *Shop) StockConflict() {
	if s != nil {
		s.StockConflicts.Inc()
	}
}

func (s *Shop) AccountBlocked() {
	if s != nil {
		s.AccountsBlocked.Inc()
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
