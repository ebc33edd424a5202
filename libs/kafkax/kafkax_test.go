package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, MetaHeaders(EventMeta{EventID: "e1", EventType: "booking.meeting.booked.v1"}))
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, got.TraceID())
	}
}

func TestExtractEventMeta_Fallbacks(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "booking.meeting.booked.v1", Key: []byte("evt-1")})
	if meta.EventType != "booking.meeting.booked.v1" || meta.EventID != "booking.meeting.booked.v1/evt-1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
