// Package tracing correlates requests across the shell's HTTP surface.
// Spans are logged through zap rather than exported; trace ids propagate
// via X-Trace-ID headers so front-end logs line up with shell logs.
package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/shared/id"
)

// TraceID identifies one logical request across services.
type TraceID string

// SpanID identifies one operation within a trace.
type SpanID string

// Span records a single traced operation.
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Err        error
	StatusCode int
}

// Tracer collects spans and logs them asynchronously.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
}

// New creates a tracer and starts its collector.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, inheriting trace context from ctx when present.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}
	parentID, _ := ctx.Value(spanIDKey).(SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  parentID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish stamps the duration.
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag attaches a key-value annotation.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError marks the span failed.
func (s *Span) SetError(err error) {
	s.Err = err
}

// SetStatus records the HTTP status code.
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit queues a finished span; full buffers drop rather than block.
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)))
	}
}

func (t *Tracer) collect() {
	for span := range t.spans {
		fields := []zap.Field{
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("operation", span.Name),
			zap.Duration("duration", span.Duration),
			zap.Int("status", span.StatusCode),
			zap.String("service", t.service),
		}
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", string(span.ParentID)))
		}

		if span.Err != nil {
			t.logger.Error("Span completed with error", append(fields, zap.Error(span.Err))...)
		} else {
			t.logger.Debug("Span completed", fields...)
		}
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID returns the trace id carried by ctx, or empty.
func GetTraceID(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}
