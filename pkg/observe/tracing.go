package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

// Default tracer name for engine spans.
const defaultTracerName = "tangle"

// TracingConfig configures the OpenTelemetry tracing hooks.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "tangle").
	TracerName string

	// TraceMemos enables a span per memo recomputation. Memo recomputes
	// are frequent and cheap; disabled by default.
	TraceMemos bool

	// Filter determines which effects to trace by name. Return true to
	// trace the run, false to skip. If nil, all effect runs are traced.
	Filter func(name string) bool

	// AttributeExtractor adds custom attributes to effect spans.
	AttributeExtractor func(id uint64, name string) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracingOption configures the OpenTelemetry tracing hooks.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithMemoSpans enables spans for memo recomputations.
func WithMemoSpans(enable bool) TracingOption {
	return func(c *TracingConfig) {
		c.TraceMemos = enable
	}
}

// WithEffectFilter sets a filter for which effects are traced.
func WithEffectFilter(filter func(name string) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor for effect spans.
func WithAttributeExtractor(extractor func(id uint64, name string) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: defaultTracerName,
		TraceMemos: false,
		Filter:     nil,
	}
}

// Tracing returns engine hooks that emit a span per effect run and batch
// drain. The hooks fire after each run with its measured duration, so
// spans are backdated with the run's start timestamp.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before wiring the hooks:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	)
//	otel.SetTracerProvider(tp)
//	tangle.SetHooks(observe.Tracing(observe.WithTracerName("my-app")))
func Tracing(opts ...TracingOption) tangle.Hooks {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	hooks := tangle.Hooks{
		OnEffectRun: func(id uint64, name string, d time.Duration) {
			if config.Filter != nil && !config.Filter(name) {
				return
			}
			spanName := "tangle.effect"
			if name != "" {
				spanName = fmt.Sprintf("tangle.effect %s", name)
			}
			attrs := []attribute.KeyValue{
				attribute.Int64("tangle.effect_id", int64(id)),
				attribute.String("tangle.effect_name", name),
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(id, name)...)
			}
			end := time.Now()
			_, span := config.tracer.Start(
				context.Background(),
				spanName,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(end.Add(-d)),
			)
			span.SetStatus(codes.Ok, "")
			span.End(trace.WithTimestamp(end))
		},

		OnBatchDrain: func(writes, consumers int) {
			_, span := config.tracer.Start(
				context.Background(),
				"tangle.batch",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.Int("tangle.batch_writes", writes),
					attribute.Int("tangle.batch_consumers", consumers),
				),
			)
			span.End()
		},

		OnError: func(err error) {
			_, span := config.tracer.Start(
				context.Background(),
				"tangle.error",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("tangle.error_kind", errorKind(err)),
				),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
		},
	}

	if config.TraceMemos {
		hooks.OnMemoRecompute = func(id uint64, d time.Duration) {
			end := time.Now()
			_, span := config.tracer.Start(
				context.Background(),
				"tangle.memo",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.Int64("tangle.memo_id", int64(id)),
				),
				trace.WithTimestamp(end.Add(-d)),
			)
			span.End(trace.WithTimestamp(end))
		}
	}

	return hooks
}
