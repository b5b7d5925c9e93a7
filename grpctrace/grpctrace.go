package grpctrace

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/abczzz13/proxytrace"
)

// TraceContext resolves the trace for the call whose server-side context is
// ctx.
func TraceContext(tracer *proxytrace.Tracer, ctx context.Context) (proxytrace.Trace, error) {
	var remoteAddr string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remoteAddr = p.Addr.String()
	}

	md, _ := metadata.FromIncomingContext(ctx)

	return tracer.TraceFrom(proxytrace.RequestInput{
		Context:    ctx,
		RemoteAddr: remoteAddr,
		Headers:    proxytrace.HeaderValuesFunc(md.Get),
		Source:     proxytrace.SourceStream,
	})
}

// TraceStream resolves the trace for a server stream.
func TraceStream(tracer *proxytrace.Tracer, stream grpc.ServerStream) (proxytrace.Trace, error) {
	return TraceContext(tracer, stream.Context())
}

// FromContext returns the trace stored by the interceptors.
func FromContext(ctx context.Context) (proxytrace.Trace, bool) {
	return proxytrace.FromContext(ctx)
}

// UnaryServerInterceptor resolves the trace of each unary call and stores
// it in the handler's context. Calls whose chain cannot be resolved fail
// with codes.InvalidArgument.
func UnaryServerInterceptor(tracer *proxytrace.Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		trace, err := TraceContext(tracer, ctx)
		if err != nil {
			return nil, traceError(err)
		}

		return handler(proxytrace.NewContext(ctx, trace), req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(tracer *proxytrace.Tracer) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		trace, err := TraceStream(tracer, stream)
		if err != nil {
			return traceError(err)
		}

		return handler(srv, &tracedStream{
			ServerStream: stream,
			ctx:          proxytrace.NewContext(stream.Context(), trace),
		})
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}

func traceError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Errorf(codes.InvalidArgument, "resolve proxy trace: %v", err)
}
