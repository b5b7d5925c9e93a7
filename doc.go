// Package proxytrace resolves the origin of a request that may have passed
// through forwarding proxies, from the connection's remote address, the
// X-Forwarded-For chain and a trust specification.
//
// The result is a Trace naming the peer (originating client), the proxy
// that connected to us, and any intermediate proxies in between.
//
// # Chain Order
//
// Every entry point builds the same nearest-first chain:
//
//	chain[0]   the connection's remote address
//	chain[1]   the right-most X-Forwarded-For entry
//	...
//	chain[n-1] the left-most X-Forwarded-For entry
//
// Resolve walks the chain from hop 0 outward and stops at the first hop the
// trust predicate rejects. That hop is the peer; hop 0 is the proxy when it
// is not the peer; the hops between are intermediate proxies. Entries
// beyond the peer were written by an untrusted party and are discarded.
//
// # Basic Usage
//
//	tracer, err := proxytrace.New(
//	    proxytrace.TrustAddrs("loopback", "10.0.0.0/8"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	trace, err := tracer.TraceRequest(req)
//	if err != nil {
//	    log.Printf("trace failed: %v", err)
//	    return
//	}
//
//	fmt.Printf("peer %s via %q\n", trace.Peer, trace.Proxy)
//
// # Trust
//
// A TrustSpec is either a callback receiving the address and hop index, or
// a list of addresses, CIDRs, dotted netmasks and the named ranges
// "loopback", "linklocal" and "uniquelocal". The zero TrustSpec trusts every
// hop, which lets any client choose its own peer address by sending an
// X-Forwarded-For header. Production deployments should configure trust
// explicitly.
//
// Malformed trust entries are reported by New and CompileTrust. Chain
// entries that cannot be parsed while matching against trusted networks,
// and errors returned by trust callbacks, fail the resolution with a
// *TrustEvaluationError; they are never treated as trusted or untrusted.
//
// # Entry Points
//
//   - Tracer.Trace: remote address plus raw X-Forwarded-For value
//   - Tracer.TraceRequest: *http.Request
//   - Tracer.TraceFrom: framework-agnostic RequestInput
//   - Tracer.Middleware: net/http middleware storing the Trace in the context
//   - package grpctrace: gRPC streams and interceptors
//
// # Observability
//
// Tracer accepts a Logger (satisfied by *slog.Logger) and a Metrics
// implementation; a Prometheus adapter lives in package
// github.com/abczzz13/proxytrace/prometheus.
//
//	tracer, err := proxytrace.New(
//	    proxytrace.PresetVMReverseProxy(),
//	    proxytrace.WithLogger(slog.Default()),
//	    proxytraceprom.WithRegisterer(registry),
//	)
//
// # Thread Safety
//
// Tracer instances and compiled TrustFuncs are safe for concurrent use.
// They are typically created once at application startup and reused across
// all requests.
package proxytrace
