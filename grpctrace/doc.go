// Package grpctrace resolves proxy traces for gRPC calls.
//
// The connection address comes from the call's peer and the forwarded chain
// from the "x-forwarded-for" incoming metadata, which gRPC gateways and
// HTTP/2 proxies populate from the X-Forwarded-For header. Both converge on
// the same chain order and resolver as the net/http entry points of
// package proxytrace.
//
// Install the interceptors to make the trace available to handlers:
//
//	tracer, _ := proxytrace.New(proxytrace.TrustAddrs("10.0.0.0/8"))
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpctrace.UnaryServerInterceptor(tracer)),
//	    grpc.StreamInterceptor(grpctrace.StreamServerInterceptor(tracer)),
//	)
//
// and read it with FromContext.
package grpctrace
