package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vptree"

const metricsSubsystem = "bridge"

// Metrics holds the bridge counters. They are registered on the Registerer
// passed with WithRegisterer; without one they are kept but not exported.
type Metrics struct {
	// CommandsTotal counts dispatched commands.
	// Labels: command, status (ok, error)
	CommandsTotal *prometheus.CounterVec
	// FlushesTotal counts flushes that merged at least one element.
	FlushesTotal prometheus.Counter
	// FlushedElementsTotal counts elements merged into engines.
	FlushedElementsTotal prometheus.Counter
	// DistanceCallsTotal counts distance callback invocations.
	DistanceCallsTotal prometheus.Counter
	// DistanceFailuresTotal counts callback invocations that aborted an operation.
	DistanceFailuresTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "commands_total",
			Help:      "Dispatched commands by command and status",
		}, []string{"command", "status"}),
		FlushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "flushes_total",
			Help:      "Pending-buffer flushes that reached the engine",
		}),
		FlushedElementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "flushed_elements_total",
			Help:      "Elements merged into engines",
		}),
		DistanceCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "distance_calls_total",
			Help:      "Distance callback invocations",
		}),
		DistanceFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "distance_failures_total",
			Help:      "Distance callback invocations that aborted an operation",
		}),
	}
}
