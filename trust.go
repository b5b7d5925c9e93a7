package proxytrace

import (
	"errors"
	"net/netip"
	"strings"
)

// TrustFunc reports whether the hop at position hop in the nearest-first
// address chain is a trusted proxy. Hop 0 is the directly connected
// address.
//
// A non-nil error aborts resolution of the whole chain.
type TrustFunc func(addr string, hop int) (bool, error)

// TrustSpec describes which hops are trusted proxies.
//
// The zero value trusts every hop: each forwarded address is accepted as a
// legitimate proxy statement and the farthest entry becomes the peer.
// Production deployments should configure Addrs or Func explicitly.
type TrustSpec struct {
	// Func is used as-is when set. It is the only form that sees the hop
	// index.
	Func TrustFunc

	// Addrs lists trusted addresses and networks. Each entry is one of a
	// bare address ("10.0.0.1", "[::1]"), a CIDR ("10.0.0.0/8"), an IPv4
	// address with a dotted netmask ("10.0.0.0/255.0.0.0") or one of the
	// named ranges "loopback", "linklocal" and "uniquelocal". Entries may
	// hold several comma-separated values.
	Addrs []string
}

// IsZero reports whether s is the trust-everything default.
func (s TrustSpec) IsZero() bool {
	return s.Func == nil && len(s.Addrs) == 0
}

var namedTrustRanges = map[string][]netip.Prefix{
	"loopback": loopbackProxyCIDRs,
	"linklocal": {
		mustParsePrefix("169.254.0.0/16"),
		mustParsePrefix("fe80::/10"),
	},
	"uniquelocal": privateProxyCIDRs,
}

func trustAll(string, int) (bool, error) {
	return true, nil
}

func trustNone(string, int) (bool, error) {
	return false, nil
}

// CompileTrust turns spec into a TrustFunc.
//
// Malformed address entries are reported here as a *ConfigurationError so
// that they never surface while serving requests. The returned function is
// safe for concurrent use.
func CompileTrust(spec TrustSpec) (TrustFunc, error) {
	if spec.Func != nil && len(spec.Addrs) > 0 {
		return nil, &ConfigurationError{Err: errors.New("trust callback and trust addresses are mutually exclusive")}
	}

	if spec.Func != nil {
		return spec.Func, nil
	}

	if len(spec.Addrs) == 0 {
		return trustAll, nil
	}

	prefixes, err := compileTrustPrefixes(spec.Addrs)
	if err != nil {
		return nil, err
	}

	return buildTrustedProxyMatcher(prefixes).match, nil
}

// MustCompileTrust is like CompileTrust but panics on error. It is intended
// for package-level predicates built from constant specs.
func MustCompileTrust(spec TrustSpec) TrustFunc {
	trust, err := CompileTrust(spec)
	if err != nil {
		panic(err)
	}
	return trust
}

func compileTrustPrefixes(addrs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(addrs))

	for _, raw := range addrs {
		for entry := range strings.SplitSeq(raw, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				return nil, &ConfigurationError{Entry: raw, Err: errors.New("empty trust entry")}
			}

			if named, ok := namedTrustRanges[strings.ToLower(entry)]; ok {
				prefixes = mergeUniquePrefixes(prefixes, named...)
				continue
			}

			prefix, err := parseTrustPrefix(entry)
			if err != nil {
				return nil, &ConfigurationError{Entry: entry, Err: err}
			}
			prefixes = mergeUniquePrefixes(prefixes, prefix.Masked())
		}
	}

	return prefixes, nil
}
