// Package tracing installs the OpenTelemetry tracer provider and propagators.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customizes the tracer provider.
type Option = sdktrace.TracerProviderOption

// Init registers a global tracer provider for serviceName and the W3C trace
// context and baggage propagators. Spans are sampled but not exported unless
// an exporter or span processor is passed in opts.
func Init(_ context.Context, serviceName string, opts ...Option) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("service name is required")
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	opts = append([]Option{sdktrace.WithResource(res)}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}
