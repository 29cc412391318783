package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics covers the cron worker's maintenance jobs.
type CronJobMetrics struct {
	runs     *prometheus.HistogramVec
	affected *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "angkor_cron_job_run_seconds",
			Help:    "Cron job run time by job and result.",
			Buckets: []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job", "result"}),
		affected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "angkor_cron_job_rows_total",
			Help: "Rows a cron job touched (deleted, synced).",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.affected)
	return m
}

// ObserveRun records one job execution; the histogram count doubles as the
// run counter.
func (c *CronJobMetrics) ObserveRun(job string, err error, took time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result(err)).Observe(took.Seconds())
}

// AddRows records how many rows a job run affected.
func (c *CronJobMetrics) AddRows(job string, n int64) {
	if c == nil || c.affected == nil || n <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
