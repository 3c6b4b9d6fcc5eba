package lojack

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "lojack_"

var (
	registerOnce sync.Once

	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	loginsTotal    *prometheus.CounterVec
	refreshesTotal *prometheus.CounterVec
	tokenCacheHits prometheus.Counter
)

// InitMetrics registers client metrics with the given registerer. Metrics
// stay disabled until this is called; calling it more than once is a no-op.
func InitMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "requests_total",
				Help: "API requests by method and result",
			},
			[]string{"method", "result"},
		)
		requestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)
		loginsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		)
		refreshesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "token_refreshes_total",
				Help: "Token refresh attempts by result",
			},
			[]string{"result"},
		)
		tokenCacheHits = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "token_cache_hits_total",
				Help: "Token requests served from cache without I/O",
			},
		)

		reg.MustRegister(
			requestsTotal,
			requestLatency,
			loginsTotal,
			refreshesTotal,
			tokenCacheHits,
		)
	})
}

func observeRequest(method, result string, took time.Duration) {
	if requestsTotal == nil {
		return
	}
	requestsTotal.WithLabelValues(method, result).Inc()
	requestLatency.WithLabelValues(method).Observe(took.Seconds())
}

func recordLogin(result string) {
	if loginsTotal == nil {
		return
	}
	loginsTotal.WithLabelValues(result).Inc()
}

func recordRefresh(result string) {
	if refreshesTotal == nil {
		return
	}
	refreshesTotal.WithLabelValues(result).Inc()
}

func recordTokenCacheHit() {
	if tokenCacheHits == nil {
		return
	}
	tokenCacheHits.Inc()
}
