package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rfcascade.v1.CascadeService"

// Full method names, as seen by interceptors.
const (
	MethodEvaluate      = "/" + ServiceName + "/Evaluate"
	MethodPutChain      = "/" + ServiceName + "/PutChain"
	MethodGetChain      = "/" + ServiceName + "/GetChain"
	MethodDeleteChain   = "/" + ServiceName + "/DeleteChain"
	MethodListChains    = "/" + ServiceName + "/ListChains"
	MethodEvaluateChain = "/" + ServiceName + "/EvaluateChain"
	MethodListMetrics   = "/" + ServiceName + "/ListMetrics"
)

// CascadeServer is the server API of the cascade service. Every message is
// a google.protobuf.Struct; the field layout of each is documented on
// Service.
type CascadeServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChains(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CascadeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CascadeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CascadeServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes CascadeService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CascadeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Evaluate", CascadeServer.Evaluate),
		unary("PutChain", CascadeServer.PutChain),
		unary("GetChain", CascadeServer.GetChain),
		unary("DeleteChain", CascadeServer.DeleteChain),
		unary("ListChains", CascadeServer.ListChains),
		unary("EvaluateChain", CascadeServer.EvaluateChain),
		unary("ListMetrics", CascadeServer.ListMetrics),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rfcascade/v1/cascade.proto",
}

// RegisterCascadeServer registers srv on s.
func RegisterCascadeServer(s grpc.ServiceRegistrar, srv CascadeServer) {
	s.RegisterService(&ServiceDesc, srv)
}
