// Package telemetry provides OpenTelemetry metrics and tracing for the
// orbit runtime.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// InstrumentationName names the meter and tracer.
const InstrumentationName = "github.com/felixgeelhaar/orbit"

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	stageTransitions metric.Int64Counter
	toolExecutions   metric.Int64Counter
	completionCalls  metric.Int64Counter
	errors           metric.Int64Counter

	// Histograms
	toolDuration       metric.Float64Histogram
	completionDuration metric.Float64Histogram
	runDuration        metric.Float64Histogram

	activeRuns metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: InstrumentationName).
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider overrides the global meter provider.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    InstrumentationName,
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = InstrumentationName
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.stageTransitions, err = mp.meter.Int64Counter(
		"orbit.stage.transitions",
		metric.WithDescription("Number of router stage transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	mp.toolExecutions, err = mp.meter.Int64Counter(
		"orbit.tool.executions",
		metric.WithDescription("Number of tool executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return err
	}

	mp.completionCalls, err = mp.meter.Int64Counter(
		"orbit.completion.calls",
		metric.WithDescription("Number of completion provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"orbit.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mp.toolDuration, err = mp.meter.Float64Histogram(
		"orbit.tool.duration",
		metric.WithDescription("Duration of tool executions"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.completionDuration, err = mp.meter.Float64Histogram(
		"orbit.completion.duration",
		metric.WithDescription("Duration of completion provider calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.runDuration, err = mp.meter.Float64Histogram(
		"orbit.run.duration",
		metric.WithDescription("Duration of agent runs"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.activeRuns, err = mp.meter.Int64UpDownCounter(
		"orbit.runs.active",
		metric.WithDescription("Number of active agent runs"),
		metric.WithUnit("{run}"),
	)
	return err
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordStageTransition records a router transition.
func (mp *MetricsProvider) RecordStageTransition(ctx context.Context, from, to agent.Stage) {
	mp.stageTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage.from", string(from)),
		attribute.String("stage.to", string(to)),
	))
}

// RecordToolExecution records a tool execution.
func (mp *MetricsProvider) RecordToolExecution(ctx context.Context, toolName string, status agent.StepStatus, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", toolName),
		attribute.String("step.status", string(status)),
	}

	mp.toolExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.toolDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if status == agent.StepFailed {
		mp.RecordError(ctx, "tool_execution", map[string]string{"tool.name": toolName})
	}
}

// RecordCompletion records a completion provider call.
func (mp *MetricsProvider) RecordCompletion(ctx context.Context, provider string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("completion.provider", provider),
		attribute.Bool("success", err == nil),
	}

	mp.completionCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.completionDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		mp.RecordError(ctx, "completion", map[string]string{"completion.provider": provider})
	}
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRunDuration records the duration of an agent run.
func (mp *MetricsProvider) RecordRunDuration(ctx context.Context, duration time.Duration, intent agent.Intent, success bool) {
	mp.runDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("intent", string(intent)),
		attribute.Bool("success", success),
	))
}

// IncrementActiveRuns increments the active runs counter.
func (mp *MetricsProvider) IncrementActiveRuns(ctx context.Context) {
	mp.activeRuns.Add(ctx, 1)
}

// DecrementActiveRuns decrements the active runs counter.
func (mp *MetricsProvider) DecrementActiveRuns(ctx context.Context) {
	mp.activeRuns.Add(ctx, -1)
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) RecordStageTransition(context.Context, agent.Stage, agent.Stage) {}
func (NoopMetricsProvider) RecordToolExecution(context.Context, string, agent.StepStatus, time.Duration) {
}
func (NoopMetricsProvider) RecordCompletion(context.Context, string, time.Duration, error)        {}
func (NoopMetricsProvider) RecordError(context.Context, string, map[string]string)               {}
func (NoopMetricsProvider) RecordRunDuration(context.Context, time.Duration, agent.Intent, bool) {}
func (NoopMetricsProvider) IncrementActiveRuns(context.Context)                                  {}
func (NoopMetricsProvider) DecrementActiveRuns(context.Context)                                  {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordStageTransition(ctx context.Context, from, to agent.Stage)
	RecordToolExecution(ctx context.Context, toolName string, status agent.StepStatus, duration time.Duration)
	RecordCompletion(ctx context.Context, provider string, duration time.Duration, err error)
	RecordError(ctx context.Context, errorType string, details map[string]string)
	RecordRunDuration(ctx context.Context, duration time.Duration, intent agent.Intent, success bool)
	IncrementActiveRuns(ctx context.Context)
	DecrementActiveRuns(ctx context.Context)
}

// ToolObserver adapts m to the executor's observer signature.
func ToolObserver(m Metrics) func(string, agent.StepStatus, time.Duration) {
	return func(toolName string, status agent.StepStatus, elapsed time.Duration) {
		m.RecordToolExecution(context.Background(), toolName, status, elapsed)
	}
}

// CompletionObserver adapts m to the completion service's observer signature.
func CompletionObserver(m Metrics) func(string, time.Duration, error) {
	return func(provider string, elapsed time.Duration, err error) {
		m.RecordCompletion(context.Background(), provider, elapsed, err)
	}
}

var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = NoopMetricsProvider{}
)
