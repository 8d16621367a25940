package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "fairaudit/internal/errors"
	"fairaudit/internal/fairness"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
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

const instrumentationName = "fairaudit/evaluation"

// Metrics holds all custom metrics for fairaudit
type Metrics struct {
	// Evaluation metrics
	EvaluationDuration metric.Float64Histogram
	EvaluationCount    metric.Int64Counter
	EvaluationErrors   metric.Int64Counter
	RecordsEvaluated   metric.Int64Counter
	FairnessScore      metric.Float64Histogram
	Violations         metric.Int64Counter

	// Infrastructure metrics
	RateLimitHits  metric.Int64Counter
	ProfileReloads metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config            ObservabilityConfig
	resource          *resource.Resource
	tracerProvider    *trace.TracerProvider
	meterProvider     *sdkmetric.MeterProvider
	metrics           *Metrics
	shutdownFuncs     []func(context.Context) error
	prometheusHandler http.Handler
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig) (*ObservabilityManager, error) {
	om := &ObservabilityManager{config: obsConfig}
	if !obsConfig.Enabled {
		return om, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(obsConfig.ServiceName),
			semconv.ServiceVersion(obsConfig.ServiceVersion),
			semconv.ServiceInstanceID(om.serviceInstanceID()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res

	if obsConfig.TracingEnabled {
		if err := om.initTracing(); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.config.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
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
	otel.SetTextMapPropagator(propagation.TraceContext{})

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

	return om.initCustomMetrics()
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.collectionInterval())))
	}

	if om.config.OTLP.Enabled {
		reader, err := om.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	reader, handler, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		readers = append(readers, reader)
		om.prometheusHandler = handler
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

// initCustomMetrics creates all custom metrics for fairaudit
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}

	if err := om.createEvaluationMetrics(meter); err != nil {
		return err
	}
	return om.createInfrastructureMetrics(meter)
}

func (om *ObservabilityManager) createEvaluationMetrics(meter metric.Meter) error {
	var err error

	om.metrics.EvaluationDuration, err = meter.Float64Histogram(
		"fairaudit_evaluation_duration_seconds",
		metric.WithDescription("Time spent evaluating a batch of decisions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluation duration metric: %w", err)
	}

	om.metrics.EvaluationCount, err = meter.Int64Counter(
		"fairaudit_evaluations_total",
		metric.WithDescription("Total number of fairness evaluations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluation count metric: %w", err)
	}

	om.metrics.EvaluationErrors, err = meter.Int64Counter(
		"fairaudit_evaluation_errors_total",
		metric.WithDescription("Total number of rejected evaluations by error code"),
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluation error metric: %w", err)
	}

	om.metrics.RecordsEvaluated, err = meter.Int64Counter(
		"fairaudit_records_evaluated_total",
		metric.WithDescription("Decision records accepted or skipped by evaluations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create records evaluated metric: %w", err)
	}

	om.metrics.FairnessScore, err = meter.Float64Histogram(
		"fairaudit_fairness_score",
		metric.WithDescription("Distribution of fairness scores"),
		metric.WithExplicitBucketBoundaries(0, 50, 60, 70, 80, 90, 100),
	)
	if err != nil {
		return fmt.Errorf("failed to create fairness score metric: %w", err)
	}

	om.metrics.Violations, err = meter.Int64Counter(
		"fairaudit_violations_total",
		metric.WithDescription("Fairness violations by metric and severity"),
	)
	if err != nil {
		return fmt.Errorf("failed to create violations metric: %w", err)
	}

	return nil
}

func (om *ObservabilityManager) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	om.metrics.RateLimitHits, err = meter.Int64Counter(
		"fairaudit_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	om.metrics.ProfileReloads, err = meter.Int64Counter(
		"fairaudit_threshold_reloads_total",
		metric.WithDescription("Threshold profile reload attempts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create threshold reload metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// PrometheusHandler serves the scrape endpoint, or nil when Prometheus is off.
func (om *ObservabilityManager) PrometheusHandler() http.Handler {
	return om.prometheusHandler
}

// PrometheusEndpoint returns the path the scrape handler should be mounted on.
func (om *ObservabilityManager) PrometheusEndpoint() string {
	return om.config.Prometheus.Endpoint
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	opts := []otelhttp.Option{otelhttp.WithMeterProvider(om.meterProvider)}
	if om.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(om.tracerProvider))
	}
	return otelhttp.NewMiddleware(om.config.ServiceName, opts...)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TrackEvaluation runs fn inside an evaluation span and records the outcome.
// source labels the caller, e.g. "http".
func (om *ObservabilityManager) TrackEvaluation(ctx context.Context, source string, fn func(context.Context) (fairness.FairnessReport, error)) (fairness.FairnessReport, error) {
	ctx, span := om.Tracer(instrumentationName).Start(ctx, "fairness.evaluate",
		oteltrace.WithAttributes(attribute.String("evaluation.source", source)))
	defer span.End()

	start := time.Now()
	report, err := fn(ctx)
	duration := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("evaluation.records", report.Summary.TotalRecords),
			attribute.Int("evaluation.skipped", report.Summary.SkippedRecords),
			attribute.Bool("evaluation.bias_detected", report.Summary.BiasDetected),
			attribute.Float64("evaluation.score", report.Summary.FairnessScore),
			attribute.String("evaluation.grade", report.Summary.Grade),
			attribute.Int("evaluation.violations", len(report.Violations)),
		)
	}

	if om.metrics != nil && om.config.CustomMetrics.Evaluations.Enabled {
		om.recordEvaluation(ctx, source, report, duration, err)
	}
	return report, err
}

func (om *ObservabilityManager) recordEvaluation(ctx context.Context, source string, report fairness.FairnessReport, duration float64, err error) {
	m := om.metrics
	tracked := om.config.CustomMetrics.Evaluations

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.Bool("success", err == nil),
	}
	if err == nil {
		attrs = append(attrs, attribute.Bool("bias_detected", report.Summary.BiasDetected))
	}

	m.EvaluationCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if tracked.TrackDuration {
		m.EvaluationDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	}

	if err != nil {
		code := apperrors.FromFairness(err).Code
		m.EvaluationErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("code", code),
		))
		return
	}

	m.RecordsEvaluated.Add(ctx, int64(report.Summary.TotalRecords),
		metric.WithAttributes(attribute.String("source", source), attribute.String("status", "accepted")))
	if report.Summary.SkippedRecords > 0 {
		m.RecordsEvaluated.Add(ctx, int64(report.Summary.SkippedRecords),
			metric.WithAttributes(attribute.String("source", source), attribute.String("status", "skipped")))
	}

	if tracked.TrackScores {
		m.FairnessScore.Record(ctx, report.Summary.FairnessScore,
			metric.WithAttributes(attribute.String("grade", report.Summary.Grade)))
	}

	if tracked.TrackViolations {
		for _, v := range report.Violations {
			m.Violations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("metric", v.Metric),
				attribute.String("severity", v.Severity.String()),
			))
		}
	}
}

// RecordRateLimitHit counts a request rejected by the named limiter.
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, limiter string) {
	infra := om.config.CustomMetrics.Infrastructure
	if om.metrics == nil || !infra.Enabled || !infra.TrackRateLimits {
		return
	}
	om.metrics.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}

// RecordProfileReload counts a threshold profile reload attempt.
func (om *ObservabilityManager) RecordProfileReload(ctx context.Context, profile string, success bool) {
	infra := om.config.CustomMetrics.Infrastructure
	if om.metrics == nil || !infra.Enabled || !infra.TrackProfileReloads {
		return
	}
	om.metrics.ProfileReloads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profile),
		attribute.Bool("success", success),
	))
}

// No-op exporter for when no trace backend is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

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

	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.collectionInterval())), nil
}

func (om *ObservabilityManager) serviceInstanceID() string {
	if om.config.ServiceInstance != "" {
		return om.config.ServiceInstance
	}
	return "fairaudit-1"
}

func (om *ObservabilityManager) collectionInterval() time.Duration {
	if om.config.CollectionInterval > 0 {
		return om.config.CollectionInterval
	}
	return 15 * time.Second
}
