package observability

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postulamatch/internal/ai"
	"postulamatch/internal/coach"
	"postulamatch/internal/config"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	_ ai.Recorder   = (*Metrics)(nil)
	_ coach.Metrics = (*Metrics)(nil)
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	return m, reader
}

// sumOf returns the total of a counter's data points
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				return total
			case metricdata.Gauge[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return 0
}

func TestRecordGeneration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "analysis", 2*time.Second, nil, 100, 50, 150)
	m.RecordGeneration(ctx, "market", time.Second, stderrors.New("boom"), 0, 0, 0)

	if got := sumOf(t, reader, "postulamatch_ai_requests_total"); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
	if got := sumOf(t, reader, "postulamatch_ai_errors_total"); got != 1 {
		t.Errorf("Expected 1 error, got %d", got)
	}
}

func TestSessionEvents(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.AnalysisSettled(ctx, true, 3*time.Second)
	m.ReportSettled(ctx, "market", coach.OutcomeLoaded)
	m.ReportSettled(ctx, "market", coach.OutcomeSuppressed)
	m.QuizCompleted(ctx, "weekly", true)
	m.ChatReplied(ctx, false)
	m.RecordRateLimitHit(ctx, "ip")

	tests := map[string]int64{
		"postulamatch_analyses_total":          1,
		"postulamatch_reports_total":           2,
		"postulamatch_quizzes_completed_total": 1,
		"postulamatch_chat_messages_total":     1,
		"postulamatch_rate_limit_hits_total":   1,
	}
	for name, want := range tests {
		if got := sumOf(t, reader, name); got != want {
			t.Errorf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestObserveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)

	if err := m.ObserveSessions(func() int { return 3 }, func() int64 { return 2 }); err != nil {
		t.Fatalf("ObserveSessions failed: %v", err)
	}
	if got := sumOf(t, reader, "postulamatch_sessions_active"); got != 3 {
		t.Errorf("Expected 3 sessions, got %d", got)
	}
	if got := sumOf(t, reader, "postulamatch_generations_in_flight"); got != 2 {
		t.Errorf("Expected 2 in flight, got %d", got)
	}
}

func TestEmptyMetricsAreNoOps(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "postulamatch"})
	if err != nil {
		t.Fatalf("NewObservabilityManager failed: %v", err)
	}

	m := om.GetMetrics()
	ctx := context.Background()
	m.RecordGeneration(ctx, "analysis", time.Second, nil, 1, 1, 2)
	m.AnalysisSettled(ctx, false, time.Second)
	m.ReportSettled(ctx, "senior", coach.OutcomeFailed)
	m.QuizCompleted(ctx, "final", false)
	m.ChatReplied(ctx, true)
	m.RecordRateLimitHit(ctx, "api_key")
	if err := m.ObserveSessions(func() int { return 0 }, func() int64 { return 0 }); err != nil {
		t.Errorf("ObserveSessions on empty metrics failed: %v", err)
	}

	if om.PrometheusServer() != nil {
		t.Error("Disabled manager must not create a metrics server")
	}

	handler := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Middleware must pass through, got %d", rec.Code)
	}
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "postulamatch"
	cfg.Observability.SampleRate = 1.0
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Tracing.SampleRate = 0.25
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Prometheus.Port = "9191"

	obs := GetObservabilityConfig(cfg, "1.2.3")
	if obs.ServiceVersion != "1.2.3" {
		t.Errorf("Expected app version fallback, got %q", obs.ServiceVersion)
	}
	if obs.SampleRate != 0.25 {
		t.Errorf("Expected tracing sample rate to win, got %v", obs.SampleRate)
	}
	if obs.Prometheus.Port != "9191" {
		t.Errorf("Expected prometheus port 9191, got %q", obs.Prometheus.Port)
	}

	cfg.Observability.Tracing.Enabled = false
	if obs := GetObservabilityConfig(cfg, "1.2.3"); obs.SampleRate != 0 {
		t.Errorf("Disabled tracing must not sample, got %v", obs.SampleRate)
	}
}
