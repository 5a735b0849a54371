// Package resolver provides endpoint discovery for load-balanced channels.
// A Resolver maps a service definition to the set of IP endpoints currently
// backing it; implementations include DNS and static lists, with custom
// resolvers registered by scheme.
package resolver

import (
	"time"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/switchboard/service"
)

// Resolver resolves a service definition to its current endpoint set.
// A Resolver is bound to a single service at build time.
type Resolver interface {
	// Resolve returns the current set of endpoints for the service.
	// An empty set is a valid result, not an error. Implementations must
	// respect context cancellation and deadlines.
	Resolve(ctx context.Context) (EndpointSet, error)

	// Close releases any resources held by the resolver.
	// After Close is called, Resolve should not be called.
	Close() error
}

// Builder creates Resolver instances for a specific scheme.
// Builders are registered globally and looked up by scheme.
type Builder interface {
	// Scheme returns the scheme this builder handles (e.g., "dns", "static").
	Scheme() string

	// Build creates a new resolver bound to the given service.
	Build(svc service.Definition, opts BuildOptions) (Resolver, error)
}

// BuildOptions configures resolver creation.
type BuildOptions struct {
	// DialTimeout bounds connections the resolver itself makes (e.g., to a
	// nameserver). Zero means no timeout.
	DialTimeout time.Duration
}
