package switchboard

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/bearlytools/switchboard/pool"
	"github.com/bearlytools/switchboard/resolver"
)

// Strategy selects how channel construction relates to the first resolution.
type Strategy uint8

const (
	// Lazy returns the channel immediately; the pool may start empty and
	// fills in once the first background resolution succeeds.
	Lazy Strategy = iota
	// Eager blocks channel construction until a first non-empty endpoint
	// set has been applied, bounded by the initial lookup deadline.
	Eager
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case Lazy:
		return "lazy"
	case Eager:
		return "eager"
	default:
		return "unknown"
	}
}

// config holds configuration for a Channel.
type config struct {
	// probeInterval is the period between resolution attempts.
	probeInterval time.Duration

	// strategy selects Lazy or Eager construction.
	strategy Strategy

	// resolutionTimeout bounds each resolution attempt.
	// Zero means equal to probeInterval.
	resolutionTimeout time.Duration

	// connectTimeout bounds each sub-connection establishment.
	// Zero means unbounded.
	connectTimeout time.Duration

	// initialLookupDeadline bounds the whole Eager bootstrap, across retries.
	initialLookupDeadline time.Duration

	// res overrides the resolver. Nil means one is built from scheme.
	res resolver.Resolver

	// scheme selects the registered resolver builder used when res is nil.
	scheme string

	// creds are the transport credentials. Nil means insecure.
	creds credentials.TransportCredentials

	// dialOpts are extra grpc options passed through to the pool.
	dialOpts []grpc.DialOption

	// observer receives the per-tick reconciliation event.
	observer Observer

	// meterProvider overrides where tick metrics are recorded.
	meterProvider metric.MeterProvider
}

func defaultConfig() *config {
	return &config{
		probeInterval:         10 * time.Second,
		strategy:              Lazy,
		initialLookupDeadline: 5 * time.Second,
		scheme:                "dns",
	}
}

// poolOptions translates the channel configuration into pool options.
func (c *config) poolOptions() []pool.Option {
	var opts []pool.Option
	if c.creds != nil {
		opts = append(opts, pool.WithTransportCredentials(c.creds))
	}
	if c.connectTimeout > 0 {
		opts = append(opts, pool.WithConnectTimeout(c.connectTimeout))
	}
	if len(c.dialOpts) > 0 {
		opts = append(opts, pool.WithDialOptions(c.dialOpts...))
	}
	return opts
}

// Option configures a Channel.
type Option func(*config)

// WithProbeInterval sets the period between resolution attempts.
// Default is 10 seconds.
func WithProbeInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.probeInterval = d
		}
	}
}

// WithResolutionStrategy selects Lazy or Eager construction.
// Default is Lazy.
func WithResolutionStrategy(s Strategy) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithResolutionTimeout bounds each resolution attempt. An attempt that
// exceeds it fails as transient. Default is the probe interval.
func WithResolutionTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.resolutionTimeout = d
		}
	}
}

// WithConnectTimeout bounds how long each new sub-connection may take to
// establish. Unset means unbounded.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithInitialLookupDeadline bounds the whole Eager bootstrap, possibly across
// several retries. Only honored with Eager. Default is 5 seconds.
func WithInitialLookupDeadline(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.initialLookupDeadline = d
		}
	}
}

// WithResolver substitutes the endpoint resolver. Default is the system DNS
// resolver bound to the channel's service.
func WithResolver(r resolver.Resolver) Option {
	return func(c *config) {
		if r != nil {
			c.res = r
		}
	}
}

// WithResolverScheme selects the registered resolver builder used when no
// resolver is injected. The scheme's package must be imported so its init
// registers the builder. Default is "dns". Ignored with WithResolver.
func WithResolverScheme(scheme string) Option {
	return func(c *config) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// WithTransportCredentials sets the transport credentials (e.g., TLS) for
// every sub-connection. Default is an insecure transport.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return func(c *config) {
		if creds != nil {
			c.creds = creds
		}
	}
}

// WithDialOptions appends raw grpc dial options to the underlying channel.
// This is an escape hatch; see pool.WithDialOptions for the caveats.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithObserver registers a callback receiving the structured event emitted
// after every reconciliation tick.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithMeterProvider overrides the otel meter provider used for tick metrics.
// Default is the meter carried by the construction context.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = mp
	}
}
