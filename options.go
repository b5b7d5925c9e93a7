package proxytrace

import (
	"fmt"
	"net/netip"
)

// Trust replaces the trust specification.
//
// Prefixes added by TrustLoopbackProxy and similar helpers are kept and
// appended to spec.Addrs; combining them with a callback is rejected by New.
func Trust(spec TrustSpec) Option {
	spec = TrustSpec{Func: spec.Func, Addrs: cloneStrings(spec.Addrs)}

	return func(c *config) error {
		c.trust = spec
		return nil
	}
}

// TrustCallback trusts the hops fn accepts. fn receives the hop index and is
// used unchanged.
func TrustCallback(fn TrustFunc) Option {
	return func(c *config) error {
		if fn == nil {
			return fmt.Errorf("trust callback cannot be nil")
		}

		c.trust = TrustSpec{Func: fn}
		return nil
	}
}

// TrustAddrs adds trusted addresses, CIDRs or named ranges.
func TrustAddrs(addrs ...string) Option {
	addrs = cloneStrings(addrs)

	return func(c *config) error {
		if c.trust.Func != nil {
			return fmt.Errorf("trust addresses cannot be combined with a trust callback")
		}

		c.trust.Addrs = append(c.trust.Addrs, addrs...)
		return nil
	}
}

// TrustAll trusts every hop. This is also the behavior when no trust option
// is given.
func TrustAll() Option {
	return func(c *config) error {
		c.trust = TrustSpec{}
		c.trustPrefixes = nil
		return nil
	}
}

// TrustNone trusts no hop, so the connection's remote address is always the
// peer.
func TrustNone() Option {
	return func(c *config) error {
		c.trust = TrustSpec{Func: trustNone}
		c.trustPrefixes = nil
		return nil
	}
}

// TrustProxyPrefixes adds trusted proxy network prefixes.
func TrustProxyPrefixes(prefixes ...netip.Prefix) Option {
	prefixes = mergeUniquePrefixes(nil, prefixes...)

	return func(c *config) error {
		for _, prefix := range prefixes {
			if !prefix.IsValid() {
				return fmt.Errorf("invalid trusted proxy prefix %q", prefix)
			}
			c.trustPrefixes = mergeUniquePrefixes(c.trustPrefixes, prefix.Masked())
		}
		return nil
	}
}

// TrustLoopbackProxy adds loopback CIDRs to trusted proxy ranges.
func TrustLoopbackProxy() Option {
	return TrustProxyPrefixes(loopbackProxyCIDRs...)
}

// TrustPrivateProxyRanges adds private network CIDRs to trusted proxy ranges.
func TrustPrivateProxyRanges() Option {
	return TrustProxyPrefixes(privateProxyCIDRs...)
}

// TrustLocalProxyDefaults adds loopback and private network CIDRs.
func TrustLocalProxyDefaults() Option {
	return func(c *config) error {
		return applyOptions(c, TrustLoopbackProxy(), TrustPrivateProxyRanges())
	}
}

// MaxChainLength sets the maximum number of addresses accepted in one chain,
// including the connection's remote address.
func MaxChainLength(max int) Option {
	return func(c *config) error {
		c.maxChainLength = max
		return nil
	}
}

// WithLogger sets the logger implementation used for warning events.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) error {
		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked only for the final winning metrics option after
// option validation succeeds.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
