// Package switchboard provides a client-side load-balanced gRPC channel.
//
// A Channel presents a single logical connection to a named service. Behind
// it, the current set of backend endpoints is discovered through a pluggable
// resolver (DNS by default), kept fresh by a background reconciler that
// re-resolves on a cadence and applies set differences to a pool of
// sub-connections, and RPCs are routed round-robin across the ready ones.
//
// Basic usage:
//
//	svc, err := service.New("backend.internal", 5000)
//	if err != nil { ... }
//	ch, err := switchboard.New(ctx, svc)
//	if err != nil { ... }
//	defer ch.Close()
//	client := pb.NewFrobberClient(ch.Conn())
package switchboard

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"google.golang.org/grpc"

	"github.com/bearlytools/switchboard/pool"
	"github.com/bearlytools/switchboard/resolver"
	"github.com/bearlytools/switchboard/service"

	// Register the default resolver scheme.
	_ "github.com/bearlytools/switchboard/resolver/dns"
)

// Common errors.
var (
	// ErrInitialResolution is returned by New when the Eager strategy cannot
	// obtain a non-empty endpoint set within the initial lookup deadline.
	ErrInitialResolution = errors.New("initial name resolution failed")
)

// Channel is a load-balanced gRPC channel to a named service. It owns the
// background reconciler and the sub-channel pool; applications issue RPCs on
// the handle returned by Conn. Create one with New and release it with Close.
type Channel struct {
	svc service.Definition
	res resolver.Resolver
	p   *pool.Pool
	rec *reconciler

	cancel context.CancelFunc

	closed bool
	mu     sync.Mutex
}

// New creates a Channel for the given service.
//
// Under the default Lazy strategy New returns immediately; the pool is empty
// until the first background resolution completes, and RPCs issued before
// then fail fast with an unavailable status. Under Eager, New blocks until a
// first non-empty endpoint set is applied or the initial lookup deadline
// expires, in which case it returns ErrInitialResolution.
//
// An IP-literal service needs no discovery: its single endpoint is applied
// immediately and no reconciler runs.
//
// Cancelling ctx stops the background reconciliation; Close still must be
// called to release the pool and its sub-connections.
func New(ctx context.Context, svc service.Definition, opts ...Option) (*Channel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.resolutionTimeout <= 0 {
		cfg.resolutionTimeout = cfg.probeInterval
	}

	res := cfg.res
	if res == nil {
		b, ok := resolver.Get(cfg.scheme)
		if !ok {
			return nil, fmt.Errorf("no resolver registered for scheme %q", cfg.scheme)
		}
		var err error
		res, err = b.Build(svc, resolver.BuildOptions{DialTimeout: cfg.resolutionTimeout})
		if err != nil {
			return nil, fmt.Errorf("build %s resolver: %w", cfg.scheme, err)
		}
	}

	p, err := pool.New(ctx, svc, cfg.poolOptions()...)
	if err != nil {
		res.Close()
		return nil, err
	}

	m, err := newMetrics(ctx, cfg.meterProvider)
	if err != nil {
		res.Close()
		p.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		svc:    svc,
		res:    res,
		p:      p,
		cancel: cancel,
	}
	ch.rec = newReconciler(res, p, cfg, m)

	// An IP literal resolves to itself forever; apply it once and skip the
	// background loop entirely.
	if addr, ok := svc.IPLiteral(); ok {
		ep := netip.AddrPortFrom(addr, svc.Port())
		if err := p.ApplyDiff(resolver.NewEndpointSet(ep), resolver.NewEndpointSet()); err != nil {
			ch.teardown()
			return nil, err
		}
		close(ch.rec.done)
		return ch, nil
	}

	if cfg.strategy == Eager {
		if err := ch.rec.bootstrap(runCtx); err != nil {
			ch.teardown()
			return nil, err
		}
		p.Connect()
	}

	context.Pool(runCtx).Submit(runCtx, func() {
		ch.rec.run(runCtx)
	})

	return ch, nil
}

// Conn returns the dispatch handle. It is valid for the lifetime of the
// Channel; generated client stubs should be constructed over it.
func (c *Channel) Conn() *grpc.ClientConn {
	return c.p.Conn()
}

// Endpoints returns a snapshot of the currently connected endpoint set.
func (c *Channel) Endpoints() resolver.EndpointSet {
	return c.p.Current()
}

// Service returns the service definition the channel was built for.
func (c *Channel) Service() service.Definition {
	return c.svc
}

// Close stops the reconciler, cancels any in-flight resolution, and tears
// down the pool with all its sub-connections. In-flight RPCs are not
// cancelled; callers own their RPC contexts. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.rec.done
	return c.teardown()
}

// teardown releases the resolver and pool, keeping the first error.
func (c *Channel) teardown() error {
	c.cancel()
	err := c.res.Close()
	if perr := c.p.Close(); err == nil {
		err = perr
	}
	return err
}
