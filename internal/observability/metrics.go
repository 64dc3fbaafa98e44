package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	signalsDelivered *prometheus.CounterVec
	signalsProcessed *prometheus.CounterVec
	mailboxSize      *prometheus.GaugeVec

	beamExecutionTotal    *prometheus.CounterVec
	beamExecutionDuration *prometheus.HistogramVec

	reflectionTotal    *prometheus.CounterVec
	reflectionDuration prometheus.Histogram

	taskAssignmentsTotal *prometheus.CounterVec
	taskCompletionsTotal *prometheus.CounterVec
	taskRetriesTotal     *prometheus.CounterVec
	objectivesRunning    *prometheus.GaugeVec
	objectivesTotal      *prometheus.CounterVec

	companiesRegistered prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			signalsDelivered: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signals_delivered_total",
					Help: "Total signals accepted into agent mailboxes by agent and schema.",
				},
				[]string{"agent", "schema"},
			),
			signalsProcessed: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "signals_processed_total",
					Help: "Total signals processed by agent and outcome.",
				},
				[]string{"agent", "status"},
			),
			mailboxSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agent_mailbox_size",
					Help: "Current mailbox depth per agent.",
				},
				[]string{"agent"},
			),
			beamExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beam_execution_total",
					Help: "Total scheduled beam executions by agent and status.",
				},
				[]string{"agent", "status"},
			),
			beamExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "beam_execution_duration_seconds",
					Help:    "Beam execution duration in seconds by agent.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			reflectionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reflection_total",
					Help: "Total reflection passes by agent and status.",
				},
				[]string{"agent", "status"},
			),
			reflectionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "reflection_duration_seconds",
					Help:    "Reflection pass duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			taskAssignmentsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_assignments_total",
					Help: "Total task assignment signals by company and role.",
				},
				[]string{"company", "role"},
			),
			taskCompletionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_completions_total",
					Help: "Total task completions by company and status.",
				},
				[]string{"company", "status"},
			),
			taskRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_retries_total",
					Help: "Total task retry assignments by company.",
				},
				[]string{"company"},
			),
			objectivesRunning: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "objectives_running",
					Help: "Objectives currently running by company.",
				},
				[]string{"company"},
			),
			objectivesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "objectives_total",
					Help: "Total finished objectives by company and status.",
				},
				[]string{"company", "status"},
			),
			companiesRegistered: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "companies_registered",
					Help: "Companies currently registered in the hub.",
				},
			),
		}

		prometheus.MustRegister(
			m.signalsDelivered,
			m.signalsProcessed,
			m.mailboxSize,
			m.beamExecutionTotal,
			m.beamExecutionDuration,
			m.reflectionTotal,
			m.reflectionDuration,
			m.taskAssignmentsTotal,
			m.taskCompletionsTotal,
			m.taskRetriesTotal,
			m.objectivesRunning,
			m.objectivesTotal,
			m.companiesRegistered,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSignalDelivered(agent, schema string, mailboxSize int) {
	m := getMetrics()
	m.signalsDelivered.WithLabelValues(agent, schema).Inc()
	m.mailboxSize.WithLabelValues(agent).Set(float64(mailboxSize))
}

func RecordSignalProcessed(agent, status string) {
	m := getMetrics()
	m.signalsProcessed.WithLabelValues(agent, status).Inc()
}

func RecordBeamExecution(agent string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.beamExecutionTotal.WithLabelValues(agent, status).Inc()
	m.beamExecutionDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func RecordReflection(agent string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.reflectionTotal.WithLabelValues(agent, status).Inc()
	m.reflectionDuration.Observe(duration.Seconds())
}

func RecordTaskAssignment(company, role string) {
	getMetrics().taskAssignmentsTotal.WithLabelValues(company, role).Inc()
}

func RecordTaskCompletion(company, status string) {
	getMetrics().taskCompletionsTotal.WithLabelValues(company, status).Inc()
}

func RecordTaskRetry(company string) {
	getMetrics().taskRetriesTotal.WithLabelValues(company).Inc()
}

func SetObjectivesRunning(company string, count int) {
	getMetrics().objectivesRunning.WithLabelValues(company).Set(float64(count))
}

func RecordObjectiveFinished(company, status string) {
	getMetrics().objectivesTotal.WithLabelValues(company, status).Inc()
}

func SetCompaniesRegistered(count int) {
	getMetrics().companiesRegistered.Set(float64(count))
}
