package pockettts

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/haivivi/pockettts/pkg/pockettts"

type instruments struct {
	frames  metric.Int64Counter
	seconds metric.Float64Counter
	pull    metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     instruments
)

// meters returns the package instruments, created on first use against the
// global meter provider.
func meters() *instruments {
	instOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		var err error
		if inst.frames, err = m.Int64Counter("pockettts.frames",
			metric.WithDescription("Latent frames decoded."),
			metric.WithUnit("{frame}"),
		); err != nil {
			otel.Handle(err)
		}
		if inst.seconds, err = m.Float64Counter("pockettts.audio",
			metric.WithDescription("Audio produced."),
			metric.WithUnit("s"),
		); err != nil {
			otel.Handle(err)
		}
		if inst.pull, err = m.Float64Histogram("pockettts.stream.next.duration",
			metric.WithDescription("Wall time of one stream pull."),
			metric.WithUnit("s"),
		); err != nil {
			otel.Handle(err)
		}
	})
	return &inst
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// record adds one batch of output to the counters.
func (m *Model) record(ctx context.Context, mode string, frames, samples int) {
	in := meters()
	attrs := metric.WithAttributes(
		attribute.String("variant", m.variant),
		attribute.String("mode", mode),
	)
	if in.frames != nil {
		in.frames.Add(ctx, int64(frames), attrs)
	}
	if in.seconds != nil {
		in.seconds.Add(ctx, float64(samples)/float64(m.info.SampleRate), attrs)
	}
}

func (m *Model) recordPull(ctx context.Context, mode string, d time.Duration) {
	if h := meters().pull; h != nil {
		h.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("variant", m.variant),
			attribute.String("mode", mode),
		))
	}
}

// startSpan starts a span for one engine operation.
func (m *Model) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("pockettts.variant", m.variant))
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
