package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg := DefaultMetricsConfig()
	cfg.Provider = provider
	mp := NewMetricsProvider(cfg)
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}
	return reader, mp
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	var total int64
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			total += dp.Value
		}
	default:
		t.Fatalf("%s: unexpected data type %T", m.Name, m.Data)
	}
	return total
}

func TestMetricsProvider_RecordToolExecution(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordToolExecution(ctx, "shell", agent.StepCompleted, 100*time.Millisecond)
	mp.RecordToolExecution(ctx, "shell", agent.StepFailed, 50*time.Millisecond)

	metrics := collect(t, reader)
	if got := sumInt(t, metrics["orbit.tool.executions"]); got != 2 {
		t.Errorf("tool executions = %d, want 2", got)
	}
	if got := sumInt(t, metrics["orbit.errors"]); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	hist, ok := metrics["orbit.tool.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("tool duration data = %T", metrics["orbit.tool.duration"].Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("duration samples = %d, want 2", count)
	}
}

func TestMetricsProvider_Observers(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)

	ToolObserver(mp)("read_file", agent.StepCompleted, time.Millisecond)
	CompletionObserver(mp)("gemini", time.Millisecond, nil)
	CompletionObserver(mp)("gemini", time.Millisecond, errors.New("boom"))

	metrics := collect(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{"orbit.tool.executions", 1},
		{"orbit.completion.calls", 2},
		{"orbit.errors", 1},
	}
	for _, tt := range tests {
		if got := sumInt(t, metrics[tt.name]); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetricsProvider_RunsAndTransitions(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.IncrementActiveRuns(ctx)
	mp.IncrementActiveRuns(ctx)
	mp.DecrementActiveRuns(ctx)
	mp.RecordStageTransition(ctx, agent.StageClassifier, agent.StagePlanner)
	mp.RecordStageTransition(ctx, agent.StagePlanner, agent.StageExecutor)
	mp.RecordRunDuration(ctx, time.Second, agent.IntentWorkflow, true)

	metrics := collect(t, reader)
	if got := sumInt(t, metrics["orbit.runs.active"]); got != 1 {
		t.Errorf("active runs = %d, want 1", got)
	}
	if got := sumInt(t, metrics["orbit.stage.transitions"]); got != 2 {
		t.Errorf("transitions = %d, want 2", got)
	}
	if _, ok := metrics["orbit.run.duration"]; !ok {
		t.Error("orbit.run.duration not recorded")
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	t.Parallel()

	var m Metrics = NoopMetricsProvider{}
	ctx := context.Background()
	m.RecordStageTransition(ctx, agent.StageStart, agent.StageClassifier)
	m.RecordToolExecution(ctx, "x", agent.StepCompleted, 0)
	m.RecordCompletion(ctx, "x", 0, nil)
	m.RecordError(ctx, "x", nil)
	m.RecordRunDuration(ctx, 0, agent.IntentQuestion, true)
	m.IncrementActiveRuns(ctx)
	m.DecrementActiveRuns(ctx)
}
