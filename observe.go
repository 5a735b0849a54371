package switchboard

import (
	"github.com/gostdlib/base/context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a reconciliation tick.
type Outcome uint8

const (
	// OutcomeOK indicates the resolution succeeded and the diff (possibly
	// empty) was applied.
	OutcomeOK Outcome = iota
	// OutcomeResolverError indicates the resolution failed; the endpoint set
	// was left untouched.
	OutcomeResolverError
	// OutcomeEmptyIgnored indicates the resolution succeeded with an empty
	// set while endpoints were connected; the previous set was retained.
	OutcomeEmptyIgnored
	// OutcomePoolError indicates the pool rejected the diff; it is retried
	// on the next tick.
	OutcomePoolError
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeResolverError:
		return "resolver_error"
	case OutcomeEmptyIgnored:
		return "empty_ignored"
	case OutcomePoolError:
		return "pool_error"
	default:
		return "unknown"
	}
}

// Tick is the structured event emitted after each reconciliation tick.
type Tick struct {
	// Added and Removed count the membership mutations applied this tick.
	Added, Removed int
	// Total is the connected endpoint count after the tick.
	Total int
	// Outcome classifies the tick.
	Outcome Outcome
	// Err carries the resolution or pool error for the error outcomes.
	Err error
}

// Observer receives tick events. Implementations must not block; they run on
// the reconciler's goroutine, except for the Eager bootstrap tick, which is
// delivered on the goroutine calling New.
type Observer interface {
	ObserveTick(t Tick)
}

// metrics holds the reconciler's otel instruments.
type metrics struct {
	ticks     metric.Int64Counter
	added     metric.Int64Counter
	removed   metric.Int64Counter
	endpoints metric.Int64Gauge
}

// newMetrics initializes the instruments. The meter comes from the provided
// MeterProvider, or from the context when mp is nil.
func newMetrics(ctx context.Context, mp metric.MeterProvider) (*metrics, error) {
	var meter metric.Meter
	if mp != nil {
		meter = mp.Meter("switchboard")
	} else {
		meter = context.Meter(ctx)
	}

	m := &metrics{}
	var err error

	m.ticks, err = meter.Int64Counter(
		"switchboard.reconciler.ticks",
		metric.WithDescription("Reconciliation ticks by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.added, err = meter.Int64Counter(
		"switchboard.reconciler.endpoints.added",
		metric.WithDescription("Endpoints added to the pool"),
	)
	if err != nil {
		return nil, err
	}

	m.removed, err = meter.Int64Counter(
		"switchboard.reconciler.endpoints.removed",
		metric.WithDescription("Endpoints removed from the pool"),
	)
	if err != nil {
		return nil, err
	}

	m.endpoints, err = meter.Int64Gauge(
		"switchboard.reconciler.endpoints",
		metric.WithDescription("Connected endpoint count"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// record writes a tick to the instruments.
func (m *metrics) record(ctx context.Context, t Tick) {
	m.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", t.Outcome.String())))
	if t.Added > 0 {
		m.added.Add(ctx, int64(t.Added))
	}
	if t.Removed > 0 {
		m.removed.Add(ctx, int64(t.Removed))
	}
	m.endpoints.Record(ctx, int64(t.Total))
}
