package proxytrace

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

type errorTextState struct {
	HasErr       bool
	ContainsText bool
}

func errorTextStateOf(err error, contains string) errorTextState {
	return errorTextState{
		HasErr:       err != nil,
		ContainsText: err != nil && strings.Contains(err.Error(), contains),
	}
}

func mustNewTracer(t *testing.T, opts ...Option) *Tracer {
	t.Helper()

	tracer, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return tracer
}

func mustCompileTrust(t *testing.T, addrs ...string) TrustFunc {
	t.Helper()

	trust, err := CompileTrust(TrustSpec{Addrs: addrs})
	if err != nil {
		t.Fatalf("CompileTrust(%q) error = %v", addrs, err)
	}

	return trust
}

func newTestRequest(remoteAddr, path string, xff ...string) *http.Request {
	req := &http.Request{
		RemoteAddr: remoteAddr,
		Header:     make(http.Header),
	}

	if path != "" {
		req.URL = &url.URL{Path: path}
	}

	for _, value := range xff {
		req.Header.Add("X-Forwarded-For", value)
	}

	return req
}

// trustSet trusts exactly the listed addresses and records every call.
type trustSet struct {
	trusted map[string]bool
	calls   []trustCall
}

type trustCall struct {
	Addr string
	Hop  int
}

func newTrustSet(addrs ...string) *trustSet {
	s := &trustSet{trusted: make(map[string]bool, len(addrs))}
	for _, addr := range addrs {
		s.trusted[addr] = true
	}
	return s
}

func (s *trustSet) fn(addr string, hop int) (bool, error) {
	s.calls = append(s.calls, trustCall{Addr: addr, Hop: hop})
	return s.trusted[addr], nil
}
