package dns

import (
	"net"
	"time"
)

// config holds configuration for a DNS resolver.
type config struct {
	// nameserver, when set, switches to direct queries against this server
	// instead of the system resolver. "ip" or "ip:port" forms are accepted.
	nameserver string

	// network is the transport for direct queries: "udp" (default) or "tcp".
	network string

	// dialTimeout bounds connections to the nameserver.
	// Zero means no timeout beyond the resolution context.
	dialTimeout time.Duration

	// netResolver performs system-mode lookups.
	netResolver *net.Resolver
}

func defaultConfig() *config {
	return &config{
		network:     "udp",
		netResolver: net.DefaultResolver,
	}
}

// Option configures a DNS resolver.
type Option func(*config)

// WithNameserver directs all queries at a specific nameserver instead of the
// system resolver configuration. The address must be an IP, optionally with a
// port; port 53 is assumed when absent.
func WithNameserver(addr string) Option {
	return func(c *config) {
		c.nameserver = addr
	}
}

// WithNetwork sets the transport for direct nameserver queries.
// "udp" (default) or "tcp".
func WithNetwork(network string) Option {
	return func(c *config) {
		c.network = network
	}
}

// WithDialTimeout bounds connections the resolver makes to a nameserver, in
// both system and direct modes. In system mode it applies only to the default
// resolver; a *net.Resolver given through WithNetResolver is used unchanged.
// Zero leaves the resolution context in charge.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithNetResolver substitutes the *net.Resolver used for system-mode lookups.
func WithNetResolver(r *net.Resolver) Option {
	return func(c *config) {
		if r != nil {
			c.netResolver = r
		}
	}
}
