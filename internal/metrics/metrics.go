// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal          *prometheus.CounterVec
	scrapeDurationSeconds prometheus.Histogram
	upsertsTotal          *prometheus.CounterVec
	queueDepth            *prometheus.GaugeVec
	activeScrapes         prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eshop_scrapes_total",
				Help: "Total number of scrape attempts, labeled by outcome.",
			},
			[]string{"status"},
		)

		scrapeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eshop_scrape_duration_seconds",
				Help:    "Histogram of end-to-end scrape latencies.",
				Buckets: []float64{1, 2, 5, 10, 20, 45, 90},
			},
		)

		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eshop_upserts_total",
				Help: "Total number of database upserts, labeled by outcome.",
			},
			[]string{"status"},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eshop_queue_depth",
				Help: "Number of entries in each queue partition.",
			},
			[]string{"partition"},
		)

		activeScrapes = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "eshop_active_scrapes",
				Help: "Number of scrapes currently in flight.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape records one finished scrape attempt.
func ObserveScrape(status string, duration time.Duration) {
	scrapesTotal.WithLabelValues(status).Inc()
	scrapeDurationSeconds.Observe(duration.Seconds())
}

// ObserveUpsert increments the upsert counter for the given outcome.
func ObserveUpsert(status string) {
	upsertsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth records the size of one queue partition.
func SetQueueDepth(partition string, depth int) {
	queueDepth.WithLabelValues(partition).Set(float64(depth))
}

// IncActiveScrapes increments the in-flight gauge.
func IncActiveScrapes() {
	activeScrapes.Inc()
}

// DecActiveScrapes decrements the in-flight gauge.
func DecActiveScrapes() {
	activeScrapes.Dec()
}
