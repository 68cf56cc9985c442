// Package metrics exposes Prometheus collectors for the pipeline service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal          *prometheus.CounterVec
	fetchRetriesTotal     *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	robotsDeniedTotal     prometheus.Counter
	rateLimitDelaySeconds *prometheus.HistogramVec
	extractionsTotal      *prometheus.CounterVec
	jobsExtractedTotal    *prometheus.CounterVec
	rendersTotal          *prometheus.CounterVec
	discoveredTotal       *prometheus.CounterVec
	runsTotal             *prometheus.CounterVec
	runsRunning           prometheus.Gauge
	runDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors against the default registry. Safe to call
// multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_fetches_total",
			Help: "Fetch completions partitioned by domain and status code.",
		}, []string{"domain", "status"})

		fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_fetch_retries_total",
			Help: "Fetch retries partitioned by domain and reason.",
		}, []string{"domain", "reason"})

		fetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobradar_fetch_duration_seconds",
			Help:    "Fetch latency per domain.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"domain"})

		robotsDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobradar_robots_denied_total",
			Help: "Fetches skipped because robots.txt disallowed the path.",
		})

		rateLimitDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobradar_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-domain rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		}, []string{"domain"})

		extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_extractions_total",
			Help: "Extraction calls partitioned by ATS type and outcome.",
		}, []string{"ats", "outcome"})

		jobsExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_jobs_extracted_total",
			Help: "Jobs produced per ATS type.",
		}, []string{"ats"})

		rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_renders_total",
			Help: "Headless render passes partitioned by result.",
		}, []string{"result"})

		discoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_discovered_companies_total",
			Help: "Discovered company candidates partitioned by source and classification.",
		}, []string{"source", "class"})

		runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_pipeline_runs_total",
			Help: "Pipeline runs partitioned by stage and terminal status.",
		}, []string{"stage", "status"})

		runsRunning = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobradar_pipeline_runs_running",
			Help: "Current number of running pipeline runs.",
		})

		runDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobradar_pipeline_run_duration_seconds",
			Help:    "Wall time per completed pipeline run.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"})
	})
}

// ObserveFetch records the outcome and latency of one fetch.
func ObserveFetch(domain string, status int, dur time.Duration) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(domain, strconv.Itoa(status)).Inc()
	fetchDurationSeconds.WithLabelValues(domain).Observe(dur.Seconds())
}

// ObserveFetchRetry counts one retry with its trigger.
func ObserveFetchRetry(domain, reason string) {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.WithLabelValues(domain, reason).Inc()
}

// ObserveRobotsDenied counts a robots.txt denial.
func ObserveRobotsDenied() {
	if robotsDeniedTotal == nil {
		return
	}
	robotsDeniedTotal.Inc()
}

// ObserveRateLimitDelay records time spent in Limiter.Wait.
func ObserveRateLimitDelay(domain string, dur time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(dur.Seconds())
}

// ObserveExtraction records one extractor invocation.
func ObserveExtraction(ats, outcome string, jobs int) {
	if extractionsTotal == nil {
		return
	}
	extractionsTotal.WithLabelValues(ats, outcome).Inc()
	if jobs > 0 {
		jobsExtractedTotal.WithLabelValues(ats).Add(float64(jobs))
	}
}

// ObserveRender counts one render pass by result.
func ObserveRender(result string) {
	if rendersTotal == nil {
		return
	}
	rendersTotal.WithLabelValues(result).Inc()
}

// ObserveDiscovered counts one candidate classification.
func ObserveDiscovered(source, class string) {
	if discoveredTotal == nil {
		return
	}
	discoveredTotal.WithLabelValues(source, class).Inc()
}

// RunStarted marks a run as running.
func RunStarted() {
	if runsRunning == nil {
		return
	}
	runsRunning.Inc()
}

// RunFinished records a terminal run status and its duration.
func RunFinished(stage, status string, dur time.Duration) {
	if runsTotal == nil {
		return
	}
	runsRunning.Dec()
	runsTotal.WithLabelValues(stage, status).Inc()
	runDurationSeconds.WithLabelValues(stage).Observe(dur.Seconds())
}
