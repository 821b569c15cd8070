package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkival/arkive-api/internal/models"
)

// metricsTally keeps running totals alongside the Prometheus collectors so
// Snapshot can answer without scraping the registry. All fields are touched
// with atomics only.
type metricsTally struct {
	cacheHits    uint64
	cacheMisses  uint64
	requests     uint64
	requestNanos uint64
	objectOps    uint64
	objectBytes  uint64
}

// MetricsService instruments the archive API: HTTP traffic, the query result
// cache, and blob movement through the object store. A nil *MetricsService is
// valid and records nothing, so services can be built without instrumentation
// in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	objectOps       *prometheus.CounterVec
	objectBytes     prometheus.Counter
	ingestSize      prometheus.Observer

	tally metricsTally
}

// NewMetricsService registers the archive collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "query_cache_latency_seconds",
		Help:    "Latency of record query cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "query_cache_hit_ratio",
		Help: "Ratio of query cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_hits_total",
		Help: "Total query cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_misses_total",
		Help: "Total query cache misses",
	})

	objectOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "object_store_operations_total",
		Help: "Object store operations by kind (ingest, open, collect)",
	}, []string{"op"})

	objectBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "object_store_ingested_bytes_total",
		Help: "Total bytes ingested into the object store",
	})

	// 1 KiB up through 4 GiB; uploads above the configured limit never reach
	// the store.
	ingestSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "object_store_ingest_size_bytes",
		Help:    "Size distribution of ingested blobs",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses, objectOps, objectBytes, ingestSize, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		objectOps:       objectOps,
		objectBytes:     objectBytes,
		ingestSize:      ingestSize,
	}
}

// Handler exposes the Prometheus scrape handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one completed request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, label).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, label).Inc()
	atomic.AddUint64(&m.tally.requests, 1)
	atomic.AddUint64(&m.tally.requestNanos, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a query cache lookup and refreshes the hit
// ratio gauge.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.tally.cacheHits, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.tally.cacheMisses, 1)
	}
	hits := atomic.LoadUint64(&m.tally.cacheHits)
	if total := hits + atomic.LoadUint64(&m.tally.cacheMisses); total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordObjectOperation counts one object store operation. The op label is
// one of ingest, open or collect.
func (m *MetricsService) RecordObjectOperation(op string) {
	if m == nil {
		return
	}
	m.objectOps.WithLabelValues(op).Inc()
	atomic.AddUint64(&m.tally.objectOps, 1)
}

// RecordObjectIngest tracks the size of a blob written into the store.
func (m *MetricsService) RecordObjectIngest(size int64) {
	if m == nil || size < 0 {
		return
	}
	m.objectBytes.Add(float64(size))
	m.ingestSize.Observe(float64(size))
	atomic.AddUint64(&m.tally.objectBytes, uint64(size))
}

// Snapshot returns the running totals for the stats endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.tally.cacheHits)
	misses := atomic.LoadUint64(&m.tally.cacheMisses)
	requests := atomic.LoadUint64(&m.tally.requests)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgMillis(atomic.LoadUint64(&m.tally.requestNanos), requests),
		ObjectOperations:         atomic.LoadUint64(&m.tally.objectOps),
		ObjectBytesIngested:      atomic.LoadUint64(&m.tally.objectBytes),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func avgMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
