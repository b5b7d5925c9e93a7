package proxytrace

import (
	"errors"
	"net/netip"
	"testing"
)

func TestTrustedProxyMatcher_Contains(t *testing.T) {
	matcher := buildTrustedProxyMatcher([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	})

	tests := []struct {
		name string
		ip   netip.Addr
		want bool
	}{
		{name: "IPv4 in range", ip: netip.MustParseAddr("10.42.1.2"), want: true},
		{name: "IPv4 out of range", ip: netip.MustParseAddr("11.0.0.1"), want: false},
		{name: "IPv4 host prefix", ip: netip.MustParseAddr("192.168.1.7"), want: true},
		{name: "IPv4 host prefix neighbour", ip: netip.MustParseAddr("192.168.1.8"), want: false},
		{name: "IPv4-mapped IPv6", ip: netip.MustParseAddr("::ffff:10.0.0.9"), want: true},
		{name: "IPv6 in range", ip: netip.MustParseAddr("2001:db8::1"), want: true},
		{name: "IPv6 out of range", ip: netip.MustParseAddr("2606:4700::1"), want: false},
		{name: "invalid address", ip: netip.Addr{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.contains(tt.ip); got != tt.want {
				t.Fatalf("matcher.contains(%v) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestTrustedProxyMatcher_ZeroPrefix(t *testing.T) {
	v4Matcher := buildTrustedProxyMatcher([]netip.Prefix{netip.MustParsePrefix("0.0.0.0/0")})
	if !v4Matcher.contains(netip.MustParseAddr("8.8.8.8")) {
		t.Fatal("expected IPv4 matcher to trust all IPv4 addresses")
	}
	if v4Matcher.contains(netip.MustParseAddr("2001:4860:4860::8888")) {
		t.Fatal("expected IPv4 matcher to reject IPv6 addresses")
	}

	v6Matcher := buildTrustedProxyMatcher([]netip.Prefix{netip.MustParsePrefix("::/0")})
	if !v6Matcher.contains(netip.MustParseAddr("2001:4860:4860::8888")) {
		t.Fatal("expected IPv6 matcher to trust all IPv6 addresses")
	}
	if v6Matcher.contains(netip.MustParseAddr("8.8.8.8")) {
		t.Fatal("expected IPv6 matcher to reject IPv4 addresses")
	}
}

func TestTrustedProxyMatcher_NilAndEmpty(t *testing.T) {
	var nilMatcher *trustedProxyMatcher
	if nilMatcher.contains(netip.MustParseAddr("10.0.0.1")) {
		t.Fatal("nil matcher must not trust anything")
	}

	empty := buildTrustedProxyMatcher(nil)
	if empty.contains(netip.MustParseAddr("10.0.0.1")) {
		t.Fatal("empty matcher must not trust anything")
	}
}

func TestTrustedProxyMatcher_Match(t *testing.T) {
	matcher := buildTrustedProxyMatcher([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	tests := []struct {
		addr    string
		want    bool
		wantErr error
	}{
		{addr: "10.0.0.1", want: true},
		{addr: "10.0.0.1:443", want: true},
		{addr: "8.8.8.8", want: false},
		{addr: "unknown", wantErr: ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := matcher.match(tt.addr, 3)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("match(%q) error = %v, want %v", tt.addr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("match(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}
