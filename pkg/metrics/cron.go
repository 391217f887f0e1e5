package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records run counts and durations for the maintenance jobs
// (history pruning, outbox retention).
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of maintenance job runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Maintenance job runs, by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(jobLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts one successful run of the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), "success").Inc()
}

// IncFailure counts one failed run of the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), "failure").Inc()
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
