// Package dns provides DNS-based endpoint resolution.
// The default mode uses the system resolver (search domains, nameservers);
// WithNameserver switches to direct queries against a specific server.
package dns

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/gostdlib/base/context"
	mdns "github.com/miekg/dns"

	"github.com/bearlytools/switchboard/resolver"
	"github.com/bearlytools/switchboard/service"
)

func init() {
	resolver.Register(&builder{})
}

type builder struct{}

func (b *builder) Scheme() string {
	return "dns"
}

func (b *builder) Build(svc service.Definition, opts resolver.BuildOptions) (resolver.Resolver, error) {
	if opts.DialTimeout > 0 {
		return New(svc, WithDialTimeout(opts.DialTimeout))
	}
	return New(svc)
}

// New creates a DNS resolver bound to svc.
func New(svc service.Definition, opts ...Option) (resolver.Resolver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.nameserver != "" {
		ns, err := normalizeNameserver(cfg.nameserver)
		if err != nil {
			return nil, err
		}
		cfg.nameserver = ns
	}

	netResolver := cfg.netResolver
	if cfg.dialTimeout > 0 && netResolver == net.DefaultResolver {
		netResolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: cfg.dialTimeout}
				return d.DialContext(ctx, network, address)
			},
		}
	}

	return &dnsResolver{
		svc:         svc,
		cfg:         cfg,
		netResolver: netResolver,
	}, nil
}

// normalizeNameserver validates a nameserver address and applies the default
// DNS port when none is given.
func normalizeNameserver(addr string) (string, error) {
	if _, err := netip.ParseAddrPort(addr); err == nil {
		return addr, nil
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return netip.AddrPortFrom(ip, 53).String(), nil
	}
	return "", &resolver.ResolutionError{
		Kind:    resolver.KindMisconfigured,
		Message: fmt.Sprintf("nameserver %q is not an IP address", addr),
	}
}

type dnsResolver struct {
	svc         service.Definition
	cfg         *config
	netResolver *net.Resolver
}

// Resolve returns the union of A and AAAA records for the service hostname.
// An IP-literal hostname short-circuits to a singleton set with no lookup.
func (r *dnsResolver) Resolve(ctx context.Context) (resolver.EndpointSet, error) {
	if addr, ok := r.svc.IPLiteral(); ok {
		return resolver.NewEndpointSet(netip.AddrPortFrom(addr, r.svc.Port())), nil
	}

	if r.cfg.nameserver != "" {
		return r.resolveDirect(ctx)
	}
	return r.resolveSystem(ctx)
}

// resolveSystem resolves through the system resolver. Note that the system
// resolver reports a NOERROR response with no records the same way as
// NXDOMAIN; callers that need to distinguish an empty answer section must use
// the direct nameserver mode.
func (r *dnsResolver) resolveSystem(ctx context.Context) (resolver.EndpointSet, error) {
	ips, err := r.netResolver.LookupIPAddr(ctx, r.svc.Hostname())
	if err != nil {
		return nil, resolver.Classify(fmt.Sprintf("lookup %q", r.svc.Hostname()), err)
	}

	set := resolver.NewEndpointSet()
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip.IP)
		if !ok {
			continue
		}
		set.Insert(netip.AddrPortFrom(addr.Unmap(), r.svc.Port()))
	}
	return set, nil
}

// resolveDirect queries the configured nameserver, one question per record
// type. A failure for one address family is tolerated when the other family
// produced records.
func (r *dnsResolver) resolveDirect(ctx context.Context) (resolver.EndpointSet, error) {
	client := &mdns.Client{Net: r.cfg.network, Timeout: r.cfg.dialTimeout}
	name := mdns.Fqdn(r.svc.Hostname())

	set := resolver.NewEndpointSet()
	var lastErr error
	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		msg := new(mdns.Msg)
		msg.SetQuestion(name, qtype)

		rsp, _, err := client.ExchangeContext(ctx, msg, r.cfg.nameserver)
		if err != nil {
			lastErr = resolver.Classify(fmt.Sprintf("query %s %s", mdns.TypeToString[qtype], name), err)
			continue
		}

		switch rsp.Rcode {
		case mdns.RcodeSuccess:
		case mdns.RcodeNameError:
			lastErr = &resolver.ResolutionError{
				Kind:    resolver.KindNotFound,
				Message: fmt.Sprintf("no such name %q", r.svc.Hostname()),
			}
			continue
		default:
			lastErr = &resolver.ResolutionError{
				Kind:    resolver.KindTransient,
				Message: fmt.Sprintf("query %s %s: rcode %s", mdns.TypeToString[qtype], name, mdns.RcodeToString[rsp.Rcode]),
			}
			continue
		}

		for _, rr := range rsp.Answer {
			switch rec := rr.(type) {
			case *mdns.A:
				if addr, ok := netip.AddrFromSlice(rec.A.To4()); ok {
					set.Insert(netip.AddrPortFrom(addr, r.svc.Port()))
				}
			case *mdns.AAAA:
				if addr, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
					set.Insert(netip.AddrPortFrom(addr.Unmap(), r.svc.Port()))
				}
			}
		}
	}

	// No records and at least one query failed: surface the error. One family
	// failing while the other answered with records is a partial result, which
	// is still a result.
	if set.Len() == 0 && lastErr != nil {
		return nil, lastErr
	}
	return set, nil
}

func (r *dnsResolver) Close() error {
	return nil
}
