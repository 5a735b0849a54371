package pool

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// config holds configuration for Pool.
type config struct {
	// creds are the transport credentials for every sub-connection.
	creds credentials.TransportCredentials

	// connectTimeout bounds the establishment of each sub-connection.
	// Zero means unbounded.
	connectTimeout time.Duration

	// dialOpts are extra options appended to the underlying dial.
	dialOpts []grpc.DialOption
}

func defaultConfig() *config {
	return &config{
		creds: insecure.NewCredentials(),
	}
}

// Option configures a Pool.
type Option func(*config)

// WithTransportCredentials sets the transport credentials (e.g., TLS) used
// for every sub-connection. Default is an insecure transport.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return func(c *config) {
		if creds != nil {
			c.creds = creds
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

// WithDialOptions appends raw grpc dial options to the underlying channel.
// This is an escape hatch; options that conflict with the pool's own
// resolver or balancer configuration produce undefined behavior.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}
