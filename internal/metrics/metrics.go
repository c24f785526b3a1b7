package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultConflict  = "conflict"
	ResultExhausted = "exhausted"
	ResultNotFound  = "not_found"
	ResultExpired   = "expired"
	ResultError     = "error"
)

// Metrics - коллекторы сервиса. Нулевой *Metrics допустим и ничего не пишет.
type Metrics struct {
	linksCreated       *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	allocationAttempts prometheus.Histogram
	httpDuration       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		linksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shorturls_links_created_total",
			Help: "Link creation requests by result.",
		}, []string{"result"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shorturls_resolutions_total",
			Help: "Short code resolutions by result.",
		}, []string{"result"}),
		allocationAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shorturls_allocation_attempts",
			Help:    "Generated codes tried before a free one was found.",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shorturls_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) LinkCreated(result string) {
	if m == nil {
		return
	}
	m.linksCreated.WithLabelValues(result).Inc()
}

func (m *Metrics) Resolved(result string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(result).Inc()
}

func (m *Metrics) AllocationAttempts(n int) {
	if m == nil {
		return
	}
	m.allocationAttempts.Observe(float64(n))
}

// Middleware замеряет длительность запросов по шаблону маршрута
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
