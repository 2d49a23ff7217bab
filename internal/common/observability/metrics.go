package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider        *metric.MeterProvider
	meter                otelmetric.Meter
	consultationCounter  otelmetric.Int64Counter
	consultationDuration otelmetric.Float64Histogram
	tracerProvider       *sdktrace.TracerProvider
	tracer               oteltrace.Tracer
}

// New wires the OpenTelemetry meter behind the Prometheus exporter. Tracing
// is off until EnableTracing is called.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	consultationCounter, _ := meter.Int64Counter(
		"consultations.processed",
		otelmetric.WithDescription("Number of consultations processed"),
	)

	consultationDuration, _ := meter.Float64Histogram(
		"consultations.duration",
		otelmetric.WithDescription("Consultation processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:        provider,
		meter:                meter,
		consultationCounter:  consultationCounter,
		consultationDuration: consultationDuration,
		tracer:               otel.Tracer(serviceName),
	}
}

// EnableTracing installs a Jaeger-exporting tracer provider so workflow runs
// and their nodes show up as spans.
func (o *Observability) EnableTracing(serviceName, jaegerEndpoint string) error {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	o.tracerProvider = tp
	o.tracer = tp.Tracer(serviceName)
	return nil
}

// StartSpan opens a span; with tracing disabled this is a cheap no-op span
// from the global provider.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("ethics-advisor")
	}
	return tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

func (o *Observability) RecordConsultation(ctx context.Context, status string) {
	if o.consultationCounter != nil {
		o.consultationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordConsultationDuration(ctx context.Context, duration time.Duration, status string) {
	if o.consultationDuration != nil {
		o.consultationDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
}
