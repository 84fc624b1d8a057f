package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobsScored(3)
		m.ApplicationsGenerated(1)
		m.ApplicationFailures(1)
		m.PipelineRun("success")
		m.ObserveLLMCall(time.Second, nil)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.JobsScored(3)
	m.JobsScored(0)
	m.ApplicationsGenerated(2)
	m.PipelineRun("success")
	m.PipelineRun("failure")
	m.PipelineRun("failure")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.jobsScored))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.appsGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("failure")))

	m.ObserveLLMCall(300*time.Millisecond, nil)
	m.ObserveLLMCall(time.Second, errors.New("boom"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.llmCallDuration))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ApplicationFailures(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "job_applier_application_failures_total 1"))
}
