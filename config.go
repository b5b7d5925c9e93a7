package proxytrace

import (
	"fmt"
	"net/netip"
)

const (
	// DefaultMaxChainLength is the maximum number of addresses, including the
	// connection's remote address, accepted in one chain. Long header values
	// cost memory and trust evaluations on every request; 100 accommodates
	// multi-region, multi-CDN setups while typical chains stay below 10.
	DefaultMaxChainLength = 100
)

// Option configures a Tracer.
//
// Construct options using package-provided option builder functions.
type Option func(*config) error

// config holds tracer configuration state.
//
// It is mutated by Option functions during construction only.
type config struct {
	trust          TrustSpec
	trustPrefixes  []netip.Prefix
	trustFunc      TrustFunc
	maxChainLength int

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

var (
	// loopbackProxyCIDRs contains loopback networks used when the app sits
	// behind a reverse proxy running on the same host.
	loopbackProxyCIDRs = []netip.Prefix{
		mustParsePrefix("127.0.0.0/8"),
		mustParsePrefix("::1/128"),
	}

	// privateProxyCIDRs contains private-network ranges commonly used for
	// trusted upstream proxies in VM and internal network deployments.
	privateProxyCIDRs = []netip.Prefix{
		mustParsePrefix("10.0.0.0/8"),
		mustParsePrefix("172.16.0.0/12"),
		mustParsePrefix("192.168.0.0/16"),
		mustParsePrefix("fc00::/7"),
	}
)

func mustParsePrefix(cidr string) netip.Prefix {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in CIDR %q: %v", cidr, err))
	}
	return prefix
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}

func mergeUniquePrefixes(existing []netip.Prefix, additions ...netip.Prefix) []netip.Prefix {
	if len(existing) == 0 && len(additions) == 0 {
		return nil
	}

	merged := make([]netip.Prefix, 0, len(existing)+len(additions))
	seen := make(map[netip.Prefix]struct{}, len(existing)+len(additions))

	for _, prefix := range existing {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	for _, prefix := range additions {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	return merged
}

func defaultConfig() *config {
	return &config{
		maxChainLength: DefaultMaxChainLength,
		logger:         noopLogger{},
		metrics:        noopMetrics{},
	}
}

func applyOptions(c *config, opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func configFromOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	if err := cfg.compileTrust(); err != nil {
		return nil, err
	}

	validationConfig := cfg
	if cfg.useMetricsFactory {
		validationConfig = cfg.clone()
		validationConfig.metrics = noopMetrics{}
	}

	if err := validationConfig.validate(); err != nil {
		return nil, err
	}

	if cfg.useMetricsFactory {
		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		cfg.metrics = metrics

		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// compileTrust folds prefixes added by the range helpers into the address
// list and builds the predicate once for the tracer's lifetime.
func (c *config) compileTrust() error {
	spec := TrustSpec{Func: c.trust.Func, Addrs: cloneStrings(c.trust.Addrs)}
	for _, prefix := range c.trustPrefixes {
		spec.Addrs = append(spec.Addrs, prefix.String())
	}

	trust, err := CompileTrust(spec)
	if err != nil {
		return err
	}

	c.trust = spec
	c.trustFunc = trust
	return nil
}

func (c *config) clone() *config {
	return &config{
		trust:             TrustSpec{Func: c.trust.Func, Addrs: cloneStrings(c.trust.Addrs)},
		trustPrefixes:     mergeUniquePrefixes(nil, c.trustPrefixes...),
		trustFunc:         c.trustFunc,
		maxChainLength:    c.maxChainLength,
		logger:            c.logger,
		metrics:           c.metrics,
		metricsFactory:    c.metricsFactory,
		useMetricsFactory: c.useMetricsFactory,
	}
}
