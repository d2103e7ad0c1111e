package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics records outcomes of process tracker tasks, labelled by runner.
type TaskMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	review   *prometheus.CounterVec
}

// NewTaskMetrics registers the task metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "process_tracker_task_duration_seconds",
		Help:    "Duration of process tracker tasks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"runner"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "process_tracker_task_success_total",
		Help: "Process tracker tasks that completed without error.",
	}, []string{"runner"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "process_tracker_task_failure_total",
		Help: "Process tracker tasks that returned an error.",
	}, []string{"runner"})
	review := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "process_tracker_task_review_total",
		Help: "Process tracker tasks parked in review after a failure.",
	}, []string{"runner"})
	reg.MustRegister(duration, success, failure, review)
	return &TaskMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		review:   review,
	}
}

// ObserveDuration records how long a task for runner took.
func (t *TaskMetrics) ObserveDuration(runner string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(normalizeLabel(runner)).Observe(duration.Seconds())
}

// IncSuccess counts a successful task for runner.
func (t *TaskMetrics) IncSuccess(runner string) {
	if t == nil || t.success == nil {
		return
	}
	t.success.WithLabelValues(normalizeLabel(runner)).Inc()
}

// IncFailure counts a failed task for runner.
func (t *TaskMetrics) IncFailure(runner string) {
	if t == nil || t.failure == nil {
		return
	}
	t.failure.WithLabelValues(normalizeLabel(runner)).Inc()
}

// IncReview counts a task the scheduler gave up on for runner.
func (t *TaskMetrics) IncReview(runner string) {
	if t == nil || t.review == nil {
		return
	}
	t.review.WithLabelValues(normalizeLabel(runner)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
