package testutil

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// RecordingTracer keeps every span a service starts so tests can assert on
// names, attributes and error status without an exporter.
type RecordingTracer struct {
	noop.Tracer

	mu    sync.Mutex
	spans []*RecordedSpan
}

func (t *RecordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &RecordedSpan{Name: name, Attributes: map[attribute.Key]attribute.Value{}}
	for _, kv := range cfg.Attributes() {
		span.Attributes[kv.Key] = kv.Value
	}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

// Spans returns the spans started so far, in start order.
func (t *RecordingTracer) Spans() []*RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*RecordedSpan(nil), t.spans...)
}

// Span returns the first span with the given name, or nil.
func (t *RecordingTracer) Span(name string) *RecordedSpan {
	for _, s := range t.Spans() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

type RecordedSpan struct {
	noop.Span

	Name        string
	Attributes  map[attribute.Key]attribute.Value
	Errors      []error
	StatusCode  codes.Code
	Description string
	Ended       bool
}

func (s *RecordedSpan) End(...trace.SpanEndOption) { s.Ended = true }

func (s *RecordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.Errors = append(s.Errors, err)
}

func (s *RecordedSpan) SetStatus(code codes.Code, description string) {
	s.StatusCode = code
	s.Description = description
}

func (s *RecordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.Attributes[a.Key] = a.Value
	}
}

func (s *RecordedSpan) IsRecording() bool { return !s.Ended }
