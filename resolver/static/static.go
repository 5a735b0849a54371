// Package static provides a resolver that returns a fixed endpoint set.
// It is useful for tests and for fronting a known list of backends without
// any discovery machinery.
package static

import (
	"net/netip"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/switchboard/resolver"
	"github.com/bearlytools/switchboard/service"
)

func init() {
	resolver.Register(&builder{})
}

type builder struct{}

func (b *builder) Scheme() string {
	return "static"
}

// Build creates a static resolver. The service must name an IP literal;
// hostnames have nothing to resolve them against here.
func (b *builder) Build(svc service.Definition, opts resolver.BuildOptions) (resolver.Resolver, error) {
	addr, ok := svc.IPLiteral()
	if !ok {
		return nil, &resolver.ResolutionError{
			Kind:    resolver.KindMisconfigured,
			Message: "static resolver requires an IP-literal service definition",
		}
	}
	return New(netip.AddrPortFrom(addr, svc.Port())), nil
}

// New creates a resolver that always returns the given endpoints.
func New(endpoints ...resolver.Endpoint) resolver.Resolver {
	return &staticResolver{set: resolver.NewEndpointSet(endpoints...)}
}

type staticResolver struct {
	set resolver.EndpointSet
}

func (r *staticResolver) Resolve(ctx context.Context) (resolver.EndpointSet, error) {
	return r.set.Clone(), nil
}

func (r *staticResolver) Close() error {
	return nil
}
