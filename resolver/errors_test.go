package resolver

import (
	"errors"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{
			name:     "Success: NXDOMAIN maps to not found",
			err:      &net.DNSError{Err: "no such host", Name: "missing.example", IsNotFound: true},
			wantKind: KindNotFound,
		},
		{
			name:     "Success: timeout maps to transient",
			err:      &net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true},
			wantKind: KindTransient,
		},
		{
			name:     "Success: generic error maps to transient",
			err:      errors.New("connection refused"),
			wantKind: KindTransient,
		},
	}

	for _, test := range tests {
		err := Classify("lookup failed", test.err)

		var re *ResolutionError
		if !errors.As(err, &re) {
			t.Errorf("TestClassify(%s): result is not a *ResolutionError: %v", test.name, err)
			continue
		}
		if re.Kind != test.wantKind {
			t.Errorf("TestClassify(%s): Kind = %s, want %s", test.name, re.Kind, test.wantKind)
		}
		if !errors.Is(err, test.err) {
			t.Errorf("TestClassify(%s): wrapped chain lost the original error", test.name)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if err := Classify("anything", nil); err != nil {
		t.Errorf("TestClassifyNil: got %v, want nil", err)
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := &ResolutionError{Kind: KindMisconfigured, Message: "bad nameserver"}
	err := Classify("outer", orig)
	var re *ResolutionError
	if !errors.As(err, &re) || re.Kind != KindMisconfigured {
		t.Errorf("TestClassifyPassthrough: got %v, want original misconfigured error", err)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindTransient, "transient"},
		{KindNotFound, "not_found"},
		{KindMisconfigured, "misconfigured"},
		{ErrorKind(99), "unknown"},
	}
	for _, test := range tests {
		if got := test.kind.String(); got != test.want {
			t.Errorf("TestErrorKindString: %d = %q, want %q", test.kind, got, test.want)
		}
	}
}
