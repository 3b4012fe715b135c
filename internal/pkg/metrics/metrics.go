package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchroom_http_requests_total",
			Help: "Total number of HTTP requests processed by the watch room service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchroom_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	roomsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchroom_rooms_created_total",
			Help: "Room creation attempts by outcome.",
		},
		[]string{"result"},
	)
	codeCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchroom_room_code_collisions_total",
			Help: "Generated room codes rejected because they were already in use.",
		},
	)
	presenceTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchroom_presence_transitions_total",
			Help: "Participant presence changes by operation and whether the active flag flipped.",
		},
		[]string{"op", "transition"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchroom_messages_total",
			Help: "Messages appended to room logs by type.",
		},
		[]string{"type"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchroom_ws_active_connections",
			Help: "Number of open room websocket connections.",
		},
	)
	catalogLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchroom_catalog_lookups_total",
			Help: "Catalog title lookups by result.",
		},
		[]string{"result"},
	)
	feedPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchroom_feed_publish_errors_total",
			Help: "Change notifications that failed to publish.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		roomsCreatedTotal,
		codeCollisionsTotal,
		presenceTransitionsTotal,
		messagesTotal,
		wsActiveConnections,
		catalogLookupsTotal,
		feedPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func IncRoomCreated(result string) {
	roomsCreatedTotal.WithLabelValues(result).Inc()
}

func IncCodeCollision() {
	codeCollisionsTotal.Inc()
}

// ObservePresence records a join, leave or expiry
func ObservePresence(op string, transitioned bool) {
	presenceTransitionsTotal.WithLabelValues(op, strconv.FormatBool(transitioned)).Inc()
}

// AddExpired records participants expired by the presence sweeper
func AddExpired(n int) {
	presenceTransitionsTotal.WithLabelValues("expire", "true").Add(float64(n))
}

func IncMessage(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncCatalogLookup(result string) {
	catalogLookupsTotal.WithLabelValues(result).Inc()
}

func IncFeedPublishError() {
	feedPublishErrorsTotal.Inc()
}
