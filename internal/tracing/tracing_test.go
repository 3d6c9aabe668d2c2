package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitRegistersProviderAndPropagator(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := Init(context.Background(), "crawlersvc-test", sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := otel.Tracer("test").Start(context.Background(), "step")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()

	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "step", recorder.Ended()[0].Name())

	var serviceName string
	for _, kv := range recorder.Ended()[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "crawlersvc-test", serviceName)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), "")
	require.Error(t, err)
}
