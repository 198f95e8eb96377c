// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus collectors for the HTTP edge. Series are
// labelled by the registered Gin route (/api/v1/listings/:network/:slug), never
// the raw URL, so slugs and invite codes cannot blow up cardinality. Requests
// that matched no route share the single "unmatched" route label.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "joingroups"
	metricsSubsystem = "http"
	unmatchedRoute   = "unmatched"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	// Buckets span a cached list page (a few ms) to a submission that waits
	// on a remote captcha store and an idempotency write.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	// A listing page is at most 14 cards plus filters, so 1 MiB is plenty.
	responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "response_size_bytes",
			Help:      "HTTP response body size by route.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 7), // 256B..1MiB
		},
		[]string{"route"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by limiter scope.",
		},
		[]string{"scope"},
	)

	// idempotencyResults counts Idempotency-Key outcomes: replay, fresh,
	// invalid, lookup_error.
	idempotencyResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "idempotency_keys_total",
			Help:      "Requests carrying an Idempotency-Key, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, inflight, responseSize, rateLimited, idempotencyResults)
}

// Metrics returns a Gin middleware that records the request counters, the
// latency and size histograms and the in-flight gauge. Mount /metrics with
// promhttp next to it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		// -1 when nothing was written (204, aborted)
		if size := c.Writer.Size(); size >= 0 {
			responseSize.WithLabelValues(route).Observe(float64(size))
		}
	}
}
