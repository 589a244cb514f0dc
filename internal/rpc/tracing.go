package rpc

import (
	"context"
	"strings"

	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/internal/observability"
	"github.com/signalsfoundry/rfcascade/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const tracerName = "github.com/signalsfoundry/rfcascade/internal/rpc"

// TracingUnaryServerInterceptor names the server span "Cascade/<Method>" and
// tags it with the chain the request is about. A span is started when no
// stats handler has provided one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "Cascade/" + method

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if s, ok := req.(*structpb.Struct); ok {
			if chain := strings.TrimSpace(stringField(s, "name")); chain != "" {
				span.SetAttributes(attribute.String("chain.name", chain))
			}
		}

		resp, err := handler(ctx, req)
		code := status.Code(err)
		span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))
		if serverFault(code) {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		return resp, err
	}
}

// serverFault reports whether code marks a server-side failure. Rejected
// chains and unknown names leave the span status unset.
func serverFault(code codes.Code) bool {
	switch code {
	case codes.Unknown, codes.Internal, codes.Unavailable, codes.DataLoss, codes.DeadlineExceeded, codes.Unimplemented:
		return true
	}
	return false
}

// startEvaluationSpan wraps one engine evaluation inside a handler.
func startEvaluationSpan(ctx context.Context, spec model.ChainSpec) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "CascadeService.evaluate", trace.WithAttributes(
		attribute.String("chain.name", spec.Name),
		attribute.String("chain.direction", string(spec.Globals.Direction)),
		attribute.Int("chain.stages", len(spec.Stages)),
	))
}
