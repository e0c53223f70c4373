package observers

import (
	"context"
	"sync"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for vehicle spans
const TracerName = "github.com/anggasct/crossing"

// TracingObserver records one span per vehicle, from arrival to departure
// or abandonment. Waiting and admission are span events.
type TracingObserver struct {
	tracer trace.Tracer
	spans  map[string]trace.Span
	mutex  sync.Mutex
}

// NewTracingObserver creates a tracing observer on tp, or on the global
// tracer provider when tp is nil
func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingObserver{
		tracer: tp.Tracer(TracerName),
		spans:  make(map[string]trace.Span),
	}
}

// OnArrive starts the vehicle span
func (o *TracingObserver) OnArrive(v *occupancy.Vehicle) {
	_, span := o.tracer.Start(context.Background(), "intersection.cross",
		trace.WithTimestamp(v.ArrivedAt),
		trace.WithAttributes(
			attribute.String("vehicle.id", v.ID),
			attribute.Int64("vehicle.arrival", int64(v.Arrival)),
			attribute.String("route.origin", v.Route.Origin.String()),
			attribute.String("route.destination", v.Route.Destination.String()),
			attribute.String("route.turn", v.Route.Turn().String()),
		),
	)

	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.spans[v.ID] = span
}

// OnWait adds a waiting event
func (o *TracingObserver) OnWait(v *occupancy.Vehicle, blocker *occupancy.Vehicle) {
	span, ok := o.span(v, false)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{}
	if blocker != nil {
		attrs = append(attrs, attribute.String("blocked_by", blocker.Route.String()))
	}
	span.AddEvent("waiting", trace.WithAttributes(attrs...))
}

// OnAdmit adds an admission event
func (o *TracingObserver) OnAdmit(v *occupancy.Vehicle, occupants int) {
	span, ok := o.span(v, false)
	if !ok {
		return
	}
	span.AddEvent("admitted",
		trace.WithTimestamp(v.AdmittedAt),
		trace.WithAttributes(attribute.Int("occupants", occupants)),
	)
	span.SetAttributes(attribute.Int64("vehicle.wait_ms", v.WaitTime().Milliseconds()))
}

// OnDepart ends the span
func (o *TracingObserver) OnDepart(v *occupancy.Vehicle, occupants int) {
	span, ok := o.span(v, true)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("occupants_after", occupants))
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(v.DepartedAt))
}

// OnAbandon ends the span with an error status
func (o *TracingObserver) OnAbandon(v *occupancy.Vehicle, err error) {
	span, ok := o.span(v, true)
	if !ok {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "abandoned")
	span.End(trace.WithTimestamp(v.DepartedAt))
}

// OnRejected does nothing; rejected vehicles never get a span
func (o *TracingObserver) OnRejected(route.Direction, route.Direction, error) {}

// OnError does nothing; protocol errors are not tied to a vehicle span
func (o *TracingObserver) OnError(error) {}

// OnClosed ends any span left open
func (o *TracingObserver) OnClosed() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	for id, span := range o.spans {
		span.SetStatus(codes.Error, "controller closed")
		span.End()
		delete(o.spans, id)
	}
}

// Open returns the number of spans not yet ended
func (o *TracingObserver) Open() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.spans)
}

func (o *TracingObserver) span(v *occupancy.Vehicle, remove bool) (trace.Span, bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	span, ok := o.spans[v.ID]
	if ok && remove {
		delete(o.spans, v.ID)
	}
	return span, ok
}
