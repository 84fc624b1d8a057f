package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "job_applier"

// Metrics holds the pipeline collectors on a private registry. All methods
// are safe on a nil receiver so callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	jobsScored      prometheus.Counter
	appsGenerated   prometheus.Counter
	appFailures     prometheus.Counter
	pipelineRuns    *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		jobsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_scored_total",
			Help:      "Jobs whose score was persisted.",
		}),
		appsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_generated_total",
			Help:      "Applications written to the archive.",
		}),
		appFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_failures_total",
			Help:      "Application generations that failed and were skipped.",
		}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		llmCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of language model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsScored, m.appsGenerated, m.appFailures, m.pipelineRuns, m.llmCallDuration,
	)
	return m
}

func (m *Metrics) JobsScored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobsScored.Add(float64(n))
}

func (m *Metrics) ApplicationsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.appsGenerated.Add(float64(n))
}

func (m *Metrics) ApplicationFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.appFailures.Add(float64(n))
}

// PipelineRun records a finished run; outcome is "success" or "failure".
func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLLMCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmCallDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
