package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// otelSpanWrapper wraps an OpenTelemetry span to implement the Span interface
type otelSpanWrapper struct {
	span trace.Span
}

func (o *otelSpanWrapper) End() {
	o.span.End()
}

func (o *otelSpanWrapper) SetStatus(code int, description string) {
	var statusCode codes.Code
	switch code {
	case 1:
		statusCode = codes.Ok
	case 2:
		statusCode = codes.Error
	default:
		statusCode = codes.Unset
	}
	o.span.SetStatus(statusCode, description)
}

func (o *otelSpanWrapper) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		o.span.SetAttributes(attribute.String(key, v))
	case int:
		o.span.SetAttributes(attribute.Int(key, v))
	case int64:
		o.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		o.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		o.span.SetAttributes(attribute.Bool(key, v))
	default:
		o.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (o *otelSpanWrapper) AddEvent(name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (o *otelSpanWrapper) RecordError(err error) {
	o.span.RecordError(err)
}

func (o *otelSpanWrapper) SpanContext() trace.SpanContext {
	return o.span.SpanContext()
}

// InitTracing initializes OpenTelemetry tracing and returns a shutdown
// function. When tracing is disabled the returned StartSpanFunc produces
// no-op spans.
func InitTracing(cfg TracingConfig, logger Logger) (StartSpanFunc, func(), error) {
	if !cfg.Enabled {
		logger.Info("tracing disabled", nil)
		return NoopStartSpan, func() {}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "easylaw-case-service"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := otel.Tracer(cfg.ServiceName)
	logger.Info("tracing initialized", map[string]interface{}{
		"service_name": cfg.ServiceName,
		"environment":  cfg.Environment,
		"endpoint":     cfg.Endpoint,
	})

	startSpan := func(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
		ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
		return ctx, &otelSpanWrapper{span: span}
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down tracer provider", map[string]interface{}{"error": err.Error()})
		}
	}

	return startSpan, shutdown, nil
}

// NoopStartSpan starts spans on a no-op tracer. Used as the default when
// tracing is disabled and in tests.
func NoopStartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := noop.NewTracerProvider().Tracer("").Start(ctx, name)
	return ctx, &otelSpanWrapper{span: span}
}
