package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"postulamatch/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool
	ConsoleOutput   bool
	PrettyPrint     bool
	SampleRate      float64
	MetricsEnabled  bool
	Interval        time.Duration
	OTLP            config.OTLPConfig
	Prometheus      PrometheusConfig
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config         ObservabilityConfig
	resource       *resource.Resource
	tracerProvider oteltrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
	promServer     *http.Server
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig) (*ObservabilityManager, error) {
	om := &ObservabilityManager{
		config:         obsConfig,
		tracerProvider: noop.NewTracerProvider(),
	}
	if !obsConfig.Enabled {
		return om, nil
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if obsConfig.MetricsEnabled {
		if err := om.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return om, nil
}

func (om *ObservabilityManager) initResource() error {
	instance := om.config.ServiceInstance
	if instance == "" {
		instance = om.config.ServiceName + "-1"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			semconv.ServiceInstanceID(instance),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		var opts []stdouttrace.Option
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.config.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(om.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)
	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	metrics, err := NewMetrics(mp.Meter(om.config.ServiceName))
	if err != nil {
		return err
	}
	om.metrics = metrics
	return nil
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.interval())))
	}

	if om.config.OTLP.Enabled {
		reader, err := om.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(om.config.Prometheus)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
		om.promServer = NewPrometheusServer(mux, om.config.Prometheus.Port)
		om.shutdownFuncs = append(om.shutdownFuncs, om.promServer.Shutdown)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

// PrometheusServer returns the dedicated metrics server, or nil when
// Prometheus is disabled. The caller starts it.
func (om *ObservabilityManager) PrometheusServer() *http.Server {
	return om.promServer
}

// GetMetrics returns the metrics instance. Without metrics every recording
// method is a no-op.
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	opts := []otelhttp.Option{otelhttp.WithTracerProvider(om.tracerProvider)}
	if om.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(om.meterProvider))
	}
	return otelhttp.NewMiddleware(om.config.ServiceName, opts...)
}

// Shutdown flushes exporters and stops the metrics server
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (om *ObservabilityManager) interval() time.Duration {
	if om.config.Interval > 0 {
		return om.config.Interval
	}
	return 15 * time.Second
}

type noOpSpanExporter struct{}

func (noOpSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (noOpSpanExporter) Shutdown(context.Context) error                          { return nil }

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.config.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := om.config.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.interval())), nil
}

// Metrics holds the service's instruments. It records generation calls for
// the AI client and session events for the coach.
type Metrics struct {
	// Generation
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Coaching sessions
	AnalysisDuration metric.Float64Histogram
	AnalysesTotal    metric.Int64Counter
	ReportsTotal     metric.Int64Counter
	QuizzesTotal     metric.Int64Counter
	ChatMessages     metric.Int64Counter

	RateLimitHits metric.Int64Counter

	meter metric.Meter
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	if err := m.createAIMetrics(); err != nil {
		return nil, err
	}
	if err := m.createSessionMetrics(); err != nil {
		return nil, err
	}

	var err error
	m.RateLimitHits, err = meter.Int64Counter(
		"postulamatch_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limited requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	return m, nil
}

func (m *Metrics) createAIMetrics() error {
	var err error

	m.AIProcessingTime, err = m.meter.Float64Histogram(
		"postulamatch_ai_processing_duration_seconds",
		metric.WithDescription("Time spent in generation requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = m.meter.Int64Counter(
		"postulamatch_ai_requests_total",
		metric.WithDescription("Total number of generation requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = m.meter.Int64Counter(
		"postulamatch_ai_errors_total",
		metric.WithDescription("Total number of failed generation requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = m.meter.Int64Histogram(
		"postulamatch_ai_token_usage",
		metric.WithDescription("Token usage per generation request (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}
	return nil
}

func (m *Metrics) createSessionMetrics() error {
	var err error

	m.AnalysisDuration, err = m.meter.Float64Histogram(
		"postulamatch_analysis_duration_seconds",
		metric.WithDescription("Wall time from upload to primary analysis"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis duration metric: %w", err)
	}

	m.AnalysesTotal, err = m.meter.Int64Counter(
		"postulamatch_analyses_total",
		metric.WithDescription("Total number of settled primary analyses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analyses metric: %w", err)
	}

	m.ReportsTotal, err = m.meter.Int64Counter(
		"postulamatch_reports_total",
		metric.WithDescription("Secondary report requests by kind and outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reports metric: %w", err)
	}

	m.QuizzesTotal, err = m.meter.Int64Counter(
		"postulamatch_quizzes_completed_total",
		metric.WithDescription("Total number of completed quizzes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create quizzes metric: %w", err)
	}

	m.ChatMessages, err = m.meter.Int64Counter(
		"postulamatch_chat_messages_total",
		metric.WithDescription("Total number of tutor chat messages"),
	)
	if err != nil {
		return fmt.Errorf("failed to create chat messages metric: %w", err)
	}
	return nil
}

// ObserveSessions registers gauges for live sessions and running generations
func (m *Metrics) ObserveSessions(sessions func() int, inflight func() int64) error {
	if m.meter == nil {
		return nil
	}

	live, err := m.meter.Int64ObservableGauge(
		"postulamatch_sessions_active",
		metric.WithDescription("Number of live coaching sessions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions gauge: %w", err)
	}
	running, err := m.meter.Int64ObservableGauge(
		"postulamatch_generations_in_flight",
		metric.WithDescription("Number of generation requests running in the background"),
	)
	if err != nil {
		return fmt.Errorf("failed to create in-flight gauge: %w", err)
	}

	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(live, int64(sessions()))
		o.ObserveInt64(running, inflight())
		return nil
	}, live, running)
	return err
}

// RecordGeneration records one generation request. Token counts are also set
// on the active span.
func (m *Metrics) RecordGeneration(ctx context.Context, operation string, elapsed time.Duration, err error, inputTokens, outputTokens, totalTokens int64) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	if span := oteltrace.SpanFromContext(ctx); span.IsRecording() && totalTokens > 0 {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", inputTokens),
			attribute.Int64("ai.tokens.output", outputTokens),
			attribute.Int64("ai.tokens.total", totalTokens),
		)
	}

	if m.AIRequestCount == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)
	m.AIProcessingTime.Record(ctx, elapsed.Seconds(), opt)
	m.AIRequestCount.Add(ctx, 1, opt)
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, opt)
		return
	}

	for _, tt := range []struct {
		tokenType string
		value     int64
	}{
		{"input", inputTokens},
		{"output", outputTokens},
		{"total", totalTokens},
	} {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// AnalysisSettled records the outcome of a primary analysis
func (m *Metrics) AnalysisSettled(ctx context.Context, success bool, elapsed time.Duration) {
	if m.AnalysesTotal == nil {
		return
	}
	opt := metric.WithAttributes(attribute.Bool("success", success))
	m.AnalysesTotal.Add(ctx, 1, opt)
	m.AnalysisDuration.Record(ctx, elapsed.Seconds(), opt)
}

// ReportSettled records a report request by kind and outcome
func (m *Metrics) ReportSettled(ctx context.Context, kind, outcome string) {
	if m.ReportsTotal == nil {
		return
	}
	m.ReportsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// QuizCompleted records a completed quiz
func (m *Metrics) QuizCompleted(ctx context.Context, kind string, passed bool) {
	if m.QuizzesTotal == nil {
		return
	}
	m.QuizzesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("passed", passed),
	))
}

// ChatReplied records a tutor chat exchange
func (m *Metrics) ChatReplied(ctx context.Context, success bool) {
	if m.ChatMessages == nil {
		return
	}
	m.ChatMessages.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRateLimitHit records a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, key string) {
	if m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limited_by", key)))
}
