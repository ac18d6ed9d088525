package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	drift     *prometheus.CounterVec
	orphans   prometheus.Counter
	unsettled prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When
// the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration and success/failure counts,
// and returns the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddDrift increments the stock drift counter for one stock item.
func (m *Metrics) AddDrift(stockID, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	direction := "surplus"
	if delta < 0 {
		direction = "deficit"
	}
	m.drift.WithLabelValues(strconv.FormatInt(stockID, 10), direction).Inc()
}

// AddOrphanCommissions counts commissions left behind by failed or
// cancelled sales.
func (m *Metrics) AddOrphanCommissions(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.orphans.Add(float64(count))
}

// AddUnsettledSales counts sales whose stored amount_paid disagreed with
// the payments log.
func (m *Metrics) AddUnsettledSales(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.unsettled.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gescom_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gescom_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gescom_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gescom_stock_drift_total",
		Help: "Stock items whose balance disagreed with their movement log.",
	}, []string{"stock_id", "direction"})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gescom_orphan_commissions_total",
		Help: "Unpaid commissions whose sale is missing or cancelled.",
	})
	unsettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gescom_settlement_drift_total",
		Help: "Sales whose amount_paid disagreed with the payments log.",
	})
	registerer.MustRegister(runs, failures, duration, drift, orphans, unsettled)
	return &Metrics{runs: runs, failures: failures, duration: duration, drift: drift, orphans: orphans, unsettled: unsettled}
}
