package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	before := otel.GetTracerProvider()

	tp, err := NewTracerProvider(ctx, Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "shopsync-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Nil(t, tp.provider)
	assert.Equal(t, before, otel.GetTracerProvider())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, tp.Shutdown(cancelled))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("requires an OTLP collector on localhost:14317")
	}

	ctx := context.Background()
	original := otel.GetTracerProvider()
	defer otel.SetTracerProvider(original)

	tp, err := NewTracerProvider(ctx, Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "shopsync-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tp.provider)

	_, span := StartSpan(ctx, "sync_job.execute")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	assert.NoError(t, tp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	traceID := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	lowTraceID := trace.TraceID{15: 1}

	tests := []struct {
		name     string
		ratio    float64
		traceID  trace.TraceID
		wantKeep bool
	}{
		{"ratio one always samples", 1.0, traceID, true},
		{"ratio above one always samples", 2.0, traceID, true},
		{"ratio zero never samples", 0.0, lowTraceID, false},
		{"negative ratio never samples", -0.5, lowTraceID, false},
		{"fractional ratio keeps low trace ids", 0.5, lowTraceID, true},
		{"fractional ratio drops high trace ids", 0.5, traceID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := samplerFor(tt.ratio).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       tt.traceID,
				Name:          "sync_job.execute",
			})
			assert.Equal(t, tt.wantKeep, result.Decision == sdktrace.RecordAndSample)
		})
	}
}

func TestSamplerFor_RespectsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	result := samplerFor(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "sync_job.execute",
	})
	assert.Equal(t, sdktrace.RecordAndSample, result.Decision)
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource("shopsync-test")
	require.NoError(t, err)

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "shopsync-test", values[string(semconv.ServiceNameKey)])
	assert.Equal(t, defaultServiceVersion, values[string(semconv.ServiceVersionKey)])
}
