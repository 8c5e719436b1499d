package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clip_ws_connections",
		Help: "Current number of active websocket connections",
	})
	RelayedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_relayed_messages_total",
		Help: "Total number of relayed end-to-end messages",
	})
	RejectedTooLarge = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_rejected_payloads_total",
		Help: "Total number of relay payloads rejected by the size ceiling",
	})
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_sessions_created_total",
		Help: "Total number of sessions created",
	})
	SessionsDestroyed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clip_sessions_destroyed_total",
		Help: "Total number of sessions destroyed by single-use consumption",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, RelayedTotal, RejectedTooLarge, SessionsCreated, SessionsDestroyed, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
