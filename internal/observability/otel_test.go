package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fairaudit/internal/config"
	"fairaudit/internal/fairness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() ObservabilityConfig {
	cfg := GetObservabilityConfig(nil, "test")
	cfg.ServiceName = "fairaudit-test"
	return cfg
}

func scrape(t *testing.T, om *ObservabilityManager) string {
	t.Helper()
	handler := om.PrometheusHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func biasedReport() fairness.FairnessReport {
	return fairness.FairnessReport{
		Summary: fairness.Summary{
			TotalRecords:   40,
			SkippedRecords: 2,
			BiasDetected:   true,
			FairnessScore:  80,
			Grade:          "A",
		},
		Violations: []fairness.Violation{
			{Metric: "disparate_impact", Severity: fairness.SeverityHigh},
		},
	}
}

func TestTrackEvaluationRecordsMetrics(t *testing.T) {
	om, err := NewObservabilityManager(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	report, err := om.TrackEvaluation(context.Background(), "http", func(context.Context) (fairness.FairnessReport, error) {
		return biasedReport(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, report.Summary.TotalRecords)

	_, err = om.TrackEvaluation(context.Background(), "http", func(context.Context) (fairness.FairnessReport, error) {
		return fairness.FairnessReport{}, &fairness.SingleGroupError{Groups: []string{"A"}}
	})
	require.Error(t, err)

	om.RecordRateLimitHit(context.Background(), "ip")
	om.RecordProfileReload(context.Background(), "strict", true)

	body := scrape(t, om)
	assert.Contains(t, body, "fairaudit_evaluations_total")
	assert.Contains(t, body, "fairaudit_evaluation_duration_seconds")
	assert.Contains(t, body, "fairaudit_fairness_score")
	assert.Contains(t, body, `severity="high"`)
	assert.Contains(t, body, `code="SINGLE_GROUP"`)
	assert.Contains(t, body, `status="skipped"`)
	assert.Contains(t, body, "fairaudit_rate_limit_hits_total")
	assert.Contains(t, body, "fairaudit_threshold_reloads_total")
}

func TestTrackEvaluationRespectsToggles(t *testing.T) {
	cfg := testConfig()
	cfg.CustomMetrics.Evaluations.TrackViolations = false
	cfg.CustomMetrics.Infrastructure.Enabled = false

	om, err := NewObservabilityManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	_, err = om.TrackEvaluation(context.Background(), "cli", func(context.Context) (fairness.FairnessReport, error) {
		return biasedReport(), nil
	})
	require.NoError(t, err)
	om.RecordRateLimitHit(context.Background(), "ip")

	body := scrape(t, om)
	assert.Contains(t, body, "fairaudit_evaluations_total")
	assert.NotContains(t, body, "fairaudit_violations_total")
	assert.NotContains(t, body, "fairaudit_rate_limit_hits_total")
}

func TestDisabledManagerIsPassthrough(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false})
	require.NoError(t, err)

	assert.Nil(t, om.PrometheusHandler())
	assert.NotNil(t, om.GetMetrics())

	want := errors.New("boom")
	_, err = om.TrackEvaluation(context.Background(), "cli", func(context.Context) (fairness.FairnessReport, error) {
		return fairness.FairnessReport{}, want
	})
	assert.ErrorIs(t, err, want)

	called := false
	h := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)

	om.RecordRateLimitHit(context.Background(), "ip")
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "svc"
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Console.Enabled = true
	cfg.Observability.Prometheus.Enabled = true

	got := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "svc", got.ServiceName)
	assert.Equal(t, "1.2.3", got.ServiceVersion)
	assert.Equal(t, 0.5, got.SampleRate)
	assert.True(t, got.ConsoleOutput)
	assert.Equal(t, "/metrics", got.Prometheus.Endpoint)
	assert.Positive(t, got.CollectionInterval)
}
