package rpc

import (
	"context"
	"time"

	"github.com/signalsfoundry/rfcascade/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// RequestIDUnaryServerInterceptor puts a request_id on the context, taking
// it from inbound metadata when the caller sent one, and attaches a
// per-request logger annotated with request_id and method. The request ID
// is echoed back in the response header.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, requestIDMetadataKey); incoming != "" {
				ctx = logging.ContextWithRequestID(ctx, incoming)
			}
		}

		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, logging.RequestIDFromContext(ctx)))

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			reqLog.Warn(ctx, "rpc failed",
				logging.String("code", status.Code(err).String()),
				logging.Err(err),
				logging.Duration("elapsed_seconds", time.Since(start)),
			)
		} else {
			reqLog.Debug(ctx, "rpc completed", logging.Duration("elapsed_seconds", time.Since(start)))
		}
		return resp, err
	}
}

// RequestIDUnaryClientInterceptor forwards the request ID carried by ctx,
// if any, as outgoing metadata.
func RequestIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := logging.RequestIDFromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, requestIDMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
