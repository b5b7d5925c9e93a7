package proxytrace

import (
	"strconv"
	"strings"
)

// Resolve partitions a nearest-first address chain into peer, proxy and
// intermediate proxies.
//
// chain[0] must be the directly connected address and each following entry
// one hop farther away. Trust is evaluated from hop 0 outward; the first
// hop trust rejects becomes the peer, or the farthest hop when every hop is
// trusted. The farthest hop is never passed to trust. Entries beyond the
// peer are claims made by an untrusted party and are not part of the
// result.
//
// A nil trust trusts every hop. Resolve does not modify chain.
func Resolve(chain []string, trust TrustFunc) (Trace, error) {
	if len(chain) == 0 {
		return Trace{}, &MalformedChainError{Reason: "empty chain"}
	}

	for i, addr := range chain {
		if strings.TrimSpace(addr) == "" {
			return Trace{}, &MalformedChainError{Reason: "empty address at hop " + strconv.Itoa(i)}
		}
	}

	if trust == nil {
		trust = trustAll
	}

	boundary, err := trustBoundary(chain, trust)
	if err != nil {
		return Trace{}, err
	}

	trace := Trace{
		Peer:                chain[boundary],
		IntermediateProxies: []string{},
	}

	if boundary > 0 {
		trace.Proxy = chain[0]
		trace.IntermediateProxies = append(trace.IntermediateProxies, chain[1:boundary]...)
	}

	return trace, nil
}

// trustBoundary returns the index of the first untrusted hop, or the last
// index when every evaluated hop is trusted.
func trustBoundary(chain []string, trust TrustFunc) (int, error) {
	last := len(chain) - 1

	for hop := range last {
		trusted, err := trust(chain[hop], hop)
		if err != nil {
			return 0, &TrustEvaluationError{Address: chain[hop], Hop: hop, Err: err}
		}
		if !trusted {
			return hop, nil
		}
	}

	return last, nil
}
