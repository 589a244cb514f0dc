package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/kb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid request", err: fmt.Errorf("%w: name is required", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "invalid chain", err: kb.ErrInvalidChain, code: codes.InvalidArgument},
		{name: "invalid document", err: fmt.Errorf("%w: bad kind", chainfile.ErrInvalidDocument), code: codes.InvalidArgument},
		{name: "unsupported format", err: chainfile.ErrUnsupportedFormat, code: codes.InvalidArgument},
		{name: "invalid globals", err: core.ErrInvalidGlobals, code: codes.InvalidArgument},
		{name: "unknown metric", err: core.ErrUnknownMetricKey, code: codes.InvalidArgument},
		{name: "not found", err: fmt.Errorf("%w: %q", kb.ErrChainNotFound, "rx"), code: codes.NotFound},
		{name: "already exists", err: kb.ErrChainExists, code: codes.AlreadyExists},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}

func TestRequestIDInterceptorUsesIncomingMetadata(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "abc"))

	var gotID string
	var gotLogger logging.Logger
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: MethodListChains}, func(ctx context.Context, req interface{}) (interface{}, error) {
		gotID = logging.RequestIDFromContext(ctx)
		gotLogger = logging.LoggerFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotID != "abc" {
		t.Fatalf("request id = %q, want abc", gotID)
	}
	if gotLogger == nil {
		t.Fatalf("expected a request logger on the context")
	}
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(logging.Noop())

	var gotID string
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodEvaluate}, func(ctx context.Context, req interface{}) (interface{}, error) {
		gotID = logging.RequestIDFromContext(ctx)
		return nil, status.Error(codes.InvalidArgument, "bad")
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("handler error not passed through: %v", err)
	}
	if gotID == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestTracingInterceptorPassesThrough(t *testing.T) {
	interceptor := TracingUnaryServerInterceptor()
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: MethodGetChain}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", nil
	})
	if err != nil || resp != "resp" {
		t.Fatalf("interceptor returned %v, %v", resp, err)
	}
}

func TestServerFaultCodes(t *testing.T) {
	for _, c := range []codes.Code{codes.Internal, codes.Unknown, codes.Unavailable} {
		if !serverFault(c) {
			t.Fatalf("%s should mark the span as failed", c)
		}
	}
	for _, c := range []codes.Code{codes.OK, codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition} {
		if serverFault(c) {
			t.Fatalf("%s is a client error", c)
		}
	}
}
