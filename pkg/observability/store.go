package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/grantsync/pkg/metrics"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

// InstrumentedStore wraps a store.Client with a span and a latency
// observation per request.
type InstrumentedStore struct {
	next   store.Client
	tracer trace.Tracer
}

var (
	_ store.Client = (*InstrumentedStore)(nil)
	_ store.Closer = (*InstrumentedStore)(nil)
)

// InstrumentStore wraps next. A nil tracer uses the global provider.
func InstrumentStore(next store.Client, tracer trace.Tracer) *InstrumentedStore {
	if tracer == nil {
		tracer = Tracer("github.com/ajitpratap0/grantsync/pkg/store")
	}
	return &InstrumentedStore{next: next, tracer: tracer}
}

// Unwrap returns the wrapped client.
func (s *InstrumentedStore) Unwrap() store.Client { return s.next }

func (s *InstrumentedStore) start(ctx context.Context, op string, kind models.Kind, attrs ...attribute.KeyValue) (context.Context, trace.Span, *metrics.Timer) {
	attrs = append(attrs, attribute.String("store.kind", string(kind)))
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	return ctx, span, metrics.NewTimer()
}

func finish(span trace.Span, timer *metrics.Timer, op string, kind models.Kind, err error) {
	timer.ObserveStore(op, kind, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// FindByAttribute implements store.Client.
func (s *InstrumentedStore) FindByAttribute(ctx context.Context, kind models.Kind, attr, value string) (models.Reference, error) {
	ctx, span, timer := s.start(ctx, "find", kind, attribute.String("store.attribute", attr))
	ref, err := s.next.FindByAttribute(ctx, kind, attr, value)
	span.SetAttributes(attribute.Bool("store.found", ref != ""))
	finish(span, timer, "find", kind, err)
	return ref, err
}

// ReadResource implements store.Client.
func (s *InstrumentedStore) ReadResource(ctx context.Context, ref models.Reference, kind models.Kind) (models.Entity, error) {
	ctx, span, timer := s.start(ctx, "read", kind, attribute.String("store.ref", string(ref)))
	e, err := s.next.ReadResource(ctx, ref, kind)
	finish(span, timer, "read", kind, err)
	return e, err
}

// CreateResource implements store.Client.
func (s *InstrumentedStore) CreateResource(ctx context.Context, entity models.Entity) (models.Reference, error) {
	ctx, span, timer := s.start(ctx, "create", entity.Kind())
	ref, err := s.next.CreateResource(ctx, entity)
	span.SetAttributes(attribute.String("store.ref", string(ref)))
	finish(span, timer, "create", entity.Kind(), err)
	return ref, err
}

// UpdateResource implements store.Client.
func (s *InstrumentedStore) UpdateResource(ctx context.Context, entity models.Entity) error {
	ctx, span, timer := s.start(ctx, "update", entity.Kind(), attribute.String("store.ref", string(entity.Ref())))
	err := s.next.UpdateResource(ctx, entity)
	finish(span, timer, "update", entity.Kind(), err)
	return err
}

// Close closes the wrapped client when it holds connections.
func (s *InstrumentedStore) Close() error {
	return store.Close(s.next)
}
