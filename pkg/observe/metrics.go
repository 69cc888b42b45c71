// Package observe exposes the engine's instrumentation hooks as Prometheus
// metrics and OpenTelemetry spans. The engine core carries no metrics
// dependencies of its own; everything here attaches through tangle.Hooks.
package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

// MetricsConfig configures the Prometheus metrics hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "tangle").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for recompute and effect run
	// durations. Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics hooks.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "tangle",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for one engine.
type Metrics struct {
	signalWrites   prometheus.Counter
	memoRecomputes prometheus.Counter
	memoDuration   prometheus.Histogram
	effectRuns     *prometheus.CounterVec
	effectDuration prometheus.Histogram
	batchDrains    prometheus.Counter
	batchWrites    prometheus.Histogram
	batchConsumers prometheus.Histogram
	errorsTotal    *prometheus.CounterVec
}

// NewMetrics registers the engine collectors and returns them.
//
// Metrics collected:
//   - tangle_signal_writes_total: Counter of changed signal writes
//   - tangle_memo_recomputes_total: Counter of memo recomputations
//   - tangle_memo_recompute_duration_seconds: Histogram of recompute duration
//   - tangle_effect_runs_total: Counter of effect runs by effect name
//   - tangle_effect_run_duration_seconds: Histogram of effect run duration
//   - tangle_batch_drains_total: Counter of batch drains
//   - tangle_batch_writes: Histogram of distinct producers per batch
//   - tangle_batch_consumers: Histogram of consumers run per batch
//   - tangle_errors_total: Counter of engine errors by kind
//
// Example:
//
//	m := observe.NewMetrics(observe.WithNamespace("myapp"))
//	tangle.SetHooks(m.Hooks())
//	http.Handle("/metrics", promhttp.Handler())
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	countBuckets := []float64{1, 2, 5, 10, 25, 50, 100, 250}

	return &Metrics{
		signalWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Total number of signal writes that changed the value",
			ConstLabels: config.ConstLabels,
		}),

		memoRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_recomputes_total",
			Help:        "Total number of memo recomputations",
			ConstLabels: config.ConstLabels,
		}),

		memoDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_recompute_duration_seconds",
			Help:        "Memo recomputation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		effectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect runs",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		effectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_run_duration_seconds",
			Help:        "Effect run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		batchDrains: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_drains_total",
			Help:        "Total number of batch drains",
			ConstLabels: config.ConstLabels,
		}),

		batchWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_writes",
			Help:        "Distinct producers written per batch",
			ConstLabels: config.ConstLabels,
			Buckets:     countBuckets,
		}),

		batchConsumers: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_consumers",
			Help:        "Consumers run per batch drain",
			ConstLabels: config.ConstLabels,
			Buckets:     countBuckets,
		}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Total engine errors by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

// Hooks returns engine hooks that feed these collectors. Compose with
// other consumers via tangle.MergeHooks.
func (m *Metrics) Hooks() tangle.Hooks {
	return tangle.Hooks{
		OnSignalWrite: func(uint64) {
			m.signalWrites.Inc()
		},
		OnMemoRecompute: func(_ uint64, d time.Duration) {
			m.memoRecomputes.Inc()
			m.memoDuration.Observe(d.Seconds())
		},
		OnEffectRun: func(_ uint64, name string, d time.Duration) {
			if name == "" {
				name = "anonymous"
			}
			m.effectRuns.WithLabelValues(name).Inc()
			m.effectDuration.Observe(d.Seconds())
		},
		OnBatchDrain: func(writes, consumers int) {
			m.batchDrains.Inc()
			m.batchWrites.Observe(float64(writes))
			m.batchConsumers.Observe(float64(consumers))
		},
		OnError: func(err error) {
			m.errorsTotal.WithLabelValues(errorKind(err)).Inc()
		},
	}
}

// errorKind buckets engine errors into low-cardinality label values.
func errorKind(err error) string {
	switch e := err.(type) {
	case *tangle.CycleError:
		return "cycle_" + e.Op
	case *tangle.ExecutionError:
		return "panic_" + e.Op
	case *tangle.ValidationError:
		return "validation"
	default:
		return "other"
	}
}
