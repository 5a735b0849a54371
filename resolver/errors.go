package resolver

import (
	"errors"
	"fmt"
	"net"
)

// ErrorKind coarsely classifies a resolution failure. The kind is advisory:
// callers that poll treat all kinds the same and keep serving from the last
// known endpoint set.
type ErrorKind uint8

const (
	// KindTransient indicates a failure likely to clear on retry, such as a
	// timeout or an unreachable nameserver.
	KindTransient ErrorKind = iota
	// KindNotFound indicates the name does not exist (NXDOMAIN).
	KindNotFound
	// KindMisconfigured indicates the resolver cannot work as configured.
	KindMisconfigured
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// ResolutionError is the failure type returned by Resolver implementations.
type ResolutionError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Message describes the failure.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements error.
func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolution failed (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("resolution failed (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Classify wraps err as a ResolutionError, mapping *net.DNSError onto kinds:
// not-found lookups become KindNotFound, timeouts and temporary failures
// become KindTransient. Anything unrecognized is KindTransient. A nil err
// returns nil. An err that already is a *ResolutionError passes through.
func Classify(msg string, err error) error {
	if err == nil {
		return nil
	}

	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}

	kind := KindTransient
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		kind = KindNotFound
	}
	return &ResolutionError{Kind: kind, Message: msg, Err: err}
}
