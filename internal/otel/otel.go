// Package otel turns resolution lifecycle events into OpenTelemetry
// spans. It subscribes to the event bus; nothing in the engine imports
// telemetry directly.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/modmdb/modm/internal/eventbus"
	events "github.com/modmdb/modm/internal/events"
	opid "github.com/modmdb/modm/internal/opid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures the OTLP trace exporter and attaches the event bus
// subscribers. If endpoint is empty no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("modm")}
	sub.register()

	return tp.Shutdown, nil
}

type fetchKey struct {
	rid        uint64
	collection string
}

type subscriber struct {
	tracer       trace.Tracer
	resolveSpans sync.Map // opid -> trace.Span
	fetchSpans   sync.Map // fetchKey -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.ResolveStart) {
		rid, _ := opid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "modm.resolve")
		span.SetAttributes(
			attribute.String("modm.resolve.mode", e.Mode),
			attribute.Int("modm.resolve.max_depth", e.MaxDepth),
		)
		s.resolveSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.ResolveFinish) {
		rid, _ := opid.FromContext(ctx)
		v, ok := s.resolveSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Int("modm.resolve.buckets", e.Buckets),
			attribute.Int("modm.resolve.fetched", e.Fetched),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
		rid, _ := opid.FromContext(ctx)
		parent := ctx
		if v, ok := s.resolveSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "modm.fetch")
		span.SetAttributes(
			attribute.String("db.mongodb.collection", e.Collection),
			attribute.Int("modm.fetch.ids", e.IDs),
		)
		s.fetchSpans.Store(fetchKey{rid: rid, collection: e.Collection}, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		rid, _ := opid.FromContext(ctx)
		v, ok := s.fetchSpans.LoadAndDelete(fetchKey{rid: rid, collection: e.Collection})
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("modm.fetch.found", e.Found))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	})
}
