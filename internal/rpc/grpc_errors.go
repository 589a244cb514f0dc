package rpc

import (
	"errors"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/kb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidRequest is used for malformed or incomplete request messages.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps store, document and engine errors onto gRPC status
// codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrChainNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, kb.ErrChainExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, kb.ErrInvalidChain),
		errors.Is(err, chainfile.ErrInvalidDocument),
		errors.Is(err, chainfile.ErrUnsupportedFormat),
		errors.Is(err, core.ErrInvalidGlobals),
		errors.Is(err, core.ErrUnknownMetricKey):
		return status.Error(codes.InvalidArgument, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
