// Package pool adapts a grpc.ClientConn into a sub-channel pool with
// externally driven membership. Endpoints are pushed into the ClientConn
// through a private resolver; grpc maintains one sub-connection per endpoint
// and round-robins RPCs across the ready ones.
package pool

import (
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	grpcresolver "google.golang.org/grpc/resolver"

	"github.com/bearlytools/switchboard/resolver"
	"github.com/bearlytools/switchboard/service"
)

// Scheme is the resolver scheme on the pool's internal dial target.
const Scheme = "switchboard"

// Common errors for Pool.
var (
	ErrPoolClosed = errors.New("pool is closed")
)

// Pool owns a grpc.ClientConn whose membership is controlled through
// ApplyDiff. It tracks the acknowledged endpoint set; grpc establishes and
// tears down the sub-connections in the background. The pool never removes
// an endpoint on its own.
type Pool struct {
	svc service.Definition
	cfg *config

	conn *grpc.ClientConn

	connected resolver.EndpointSet
	cc        grpcresolver.ClientConn // set once grpc builds the push resolver
	closed    bool
	mu        sync.Mutex
}

// New creates a pool for the given service. The ClientConn is created
// immediately but stays idle until an RPC arrives or Connect is called;
// no endpoints are known until the first ApplyDiff.
func New(ctx context.Context, svc service.Definition, opts ...Option) (*Pool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	p := &Pool{
		svc:       svc,
		cfg:       cfg,
		connected: resolver.NewEndpointSet(),
	}

	sc, err := serviceConfigJSON()
	if err != nil {
		return nil, fmt.Errorf("build service config: %w", err)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithResolvers(&pushBuilder{pool: p}),
		grpc.WithTransportCredentials(cfg.creds),
		grpc.WithDefaultServiceConfig(sc),
	}
	if cfg.connectTimeout > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: cfg.connectTimeout,
		}))
	}
	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(Scheme+":///"+svc.Authority(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client conn: %w", err)
	}
	p.conn = conn

	return p, nil
}

// serviceConfigJSON builds the service config document selecting the
// round_robin balancing policy.
func serviceConfigJSON() (string, error) {
	type lbPolicy struct {
		RoundRobin struct{} `json:"round_robin"`
	}
	doc := struct {
		LoadBalancingConfig []lbPolicy `json:"loadBalancingConfig"`
	}{
		LoadBalancingConfig: []lbPolicy{{}},
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ApplyDiff submits membership changes. Adding a present endpoint and
// removing an absent one are no-ops; an empty diff does nothing. The call
// never blocks on connection establishment. There is no cap on the set size;
// whatever the diff produces is handed to the balancer.
//
// The mutation is committed to the tracked set only after the underlying
// channel acknowledges the push. A rejected push leaves the set unchanged
// and returns a wrapped error, so a caller recomputing its diff against
// Current() on the next pass retries the same mutation.
func (p *Pool) ApplyDiff(toAdd, toRemove resolver.EndpointSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if toAdd.Len() == 0 && toRemove.Len() == 0 {
		return nil
	}

	next := p.connected.Clone()
	for ep := range toAdd {
		next.Insert(ep)
	}
	for ep := range toRemove {
		next.Delete(ep)
	}
	if next.Equal(p.connected) {
		return nil
	}

	if p.cc != nil {
		if err := p.pushSet(next); err != nil {
			return fmt.Errorf("pool mutation rejected: %w", err)
		}
	}
	p.connected = next
	return nil
}

// pushSet sends the full given set to the ClientConn. Callers hold p.mu.
func (p *Pool) pushSet(set resolver.EndpointSet) error {
	addrs := make([]grpcresolver.Address, 0, set.Len())
	for ep := range set {
		addrs = append(addrs, grpcresolver.Address{Addr: ep.String()})
	}
	return p.cc.UpdateState(grpcresolver.State{Addresses: addrs})
}

// attach is called when grpc builds the push resolver. The current set is
// pushed immediately; before the first discovery it may be empty, which grpc
// reports as a bad resolver state so that RPCs fail fast instead of hanging.
func (p *Pool) attach(cc grpcresolver.ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cc = cc
	_ = p.pushSet(p.connected)
}

// AttachForTesting hands the pool a resolver ClientConn directly, bypassing
// the grpc dial path, so tests can observe and fail pushes.
// This function is for testing only.
func (p *Pool) AttachForTesting(cc grpcresolver.ClientConn) {
	p.attach(cc)
}

// Current returns a snapshot of the acknowledged endpoint set.
func (p *Pool) Current() resolver.EndpointSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected.Clone()
}

// Conn returns the dispatch handle applications issue RPCs on.
func (p *Pool) Conn() *grpc.ClientConn {
	return p.conn
}

// Connect kicks the ClientConn out of idle so sub-connections start
// establishing without waiting for the first RPC.
func (p *Pool) Connect() {
	p.conn.Connect()
}

// Close tears down the ClientConn and every sub-connection.
// Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.conn.Close()
}

// pushBuilder is the grpcresolver.Builder registered on the pool's dial.
// Build hands the ClientConn to the pool; membership flows in only through
// ApplyDiff, so ResolveNow has nothing to do.
type pushBuilder struct {
	pool *Pool
}

func (b *pushBuilder) Scheme() string {
	return Scheme
}

func (b *pushBuilder) Build(target grpcresolver.Target, cc grpcresolver.ClientConn, opts grpcresolver.BuildOptions) (grpcresolver.Resolver, error) {
	b.pool.attach(cc)
	return nopResolver{}, nil
}

type nopResolver struct{}

func (nopResolver) ResolveNow(grpcresolver.ResolveNowOptions) {}

func (nopResolver) Close() {}
