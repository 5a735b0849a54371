// Package service defines the logical naming of a load-balanced backend.
// A Definition is a validated (hostname, port) pair; it names a service
// independently of the endpoints the name currently resolves to.
package service

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/net/idna"
	"k8s.io/apimachinery/pkg/util/validation"
)

// Common errors for Definition construction.
var (
	ErrInvalidHostname = errors.New("invalid hostname")
	ErrInvalidPort     = errors.New("port must be in range 1-65535")
)

// Definition names a backend service as a (hostname, port) pair.
// The hostname is either a DNS name or an IP literal. Definitions are
// immutable after construction; a zero Definition is not valid.
type Definition struct {
	hostname string
	port     uint16

	// literal holds the parsed address when hostname is an IP literal.
	literal   netip.Addr
	isLiteral bool
}

// New creates a Definition. The hostname must be a syntactically valid DNS
// name (RFC 1123) or an IPv4/IPv6 literal; internationalized names are
// converted to their ASCII form. The port must be in [1, 65535].
func New(hostname string, port int) (Definition, error) {
	if port < 1 || port > 65535 {
		return Definition{}, fmt.Errorf("%w: got %d", ErrInvalidPort, port)
	}

	if hostname == "" {
		return Definition{}, fmt.Errorf("%w: empty", ErrInvalidHostname)
	}

	if addr, err := netip.ParseAddr(hostname); err == nil {
		return Definition{
			hostname:  hostname,
			port:      uint16(port),
			literal:   addr.Unmap(),
			isLiteral: true,
		}, nil
	}

	ascii, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %q: %v", ErrInvalidHostname, hostname, err)
	}
	if msgs := validation.IsDNS1123Subdomain(ascii); len(msgs) > 0 {
		return Definition{}, fmt.Errorf("%w: %q: %s", ErrInvalidHostname, hostname, msgs[0])
	}

	return Definition{hostname: ascii, port: uint16(port)}, nil
}

// Hostname returns the service's hostname. For internationalized names this
// is the ASCII (punycode) form.
func (d Definition) Hostname() string {
	return d.hostname
}

// Port returns the service's port.
func (d Definition) Port() uint16 {
	return d.port
}

// IPLiteral returns the parsed address and true when the hostname is an IP
// literal rather than a DNS name.
func (d Definition) IPLiteral() (netip.Addr, bool) {
	return d.literal, d.isLiteral
}

// Authority returns the host:port form, with IPv6 literals bracketed.
// This is the authority a transport should present for the service.
func (d Definition) Authority() string {
	return net.JoinHostPort(d.hostname, strconv.Itoa(int(d.port)))
}

// String implements fmt.Stringer.
func (d Definition) String() string {
	return d.Authority()
}
