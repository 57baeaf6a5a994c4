// Package metrics holds the Prometheus collectors shared by the fetchers,
// the transaction tracker and the API server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	ExplorerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletunity",
			Subsystem: "explorer",
			Name:      "requests_total",
			Help:      "Block-explorer API requests by chain, action and outcome",
		},
		[]string{"chain", "action", "outcome"}, // ok, error
	)

	PriceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletunity",
			Subsystem: "price",
			Name:      "requests_total",
			Help:      "Price-feed requests by token and outcome",
		},
		[]string{"token", "outcome"}, // ok, error, cached
	)

	TransactionPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletunity",
			Subsystem: "tracker",
			Name:      "polls_total",
			Help:      "Status polls issued for tracked transactions",
		},
		[]string{"type"},
	)

	TransactionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletunity",
			Subsystem: "tracker",
			Name:      "finished_total",
			Help:      "Tracked transactions that reached a terminal status",
		},
		[]string{"type", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletunity",
			Subsystem: "server",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletunity",
			Subsystem: "server",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Register registers all collectors on the default registry.
func Register(logger *logrus.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)
	registerIfNotExists(ExplorerRequests, "explorer_requests_total", logger)
	registerIfNotExists(PriceRequests, "price_requests_total", logger)
	registerIfNotExists(TransactionPolls, "tracker_polls_total", logger)
	registerIfNotExists(TransactionsFinished, "tracker_finished_total", logger)
	registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
}

func registerIfNotExists(collector prometheus.Collector, name string, logger *logrus.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

// Outcome maps an error to the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency under the route pattern path.
func Middleware(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	}
}
