package marketrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MarketServer is the server API for the Market gRPC service.
//
// Every method carries a JSON wire message (wire.go) inside a protobuf
// BytesValue so this package does not require a protoc/codegen toolchain.
//
// Proto definition: market.proto.
type MarketServer interface {
	Register(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Disclose(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	GetCard(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	ListCard(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	UpdatePrice(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	SendBuyRequest(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	AcceptBuyRequest(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	RemoveCard(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	VerifyCard(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	GetListing(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Deposit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Balance(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Height(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterMarketServer registers the Market service on a gRPC server.
func RegisterMarketServer(s grpc.ServiceRegistrar, srv MarketServer) {
	s.RegisterService(&Market_ServiceDesc, srv)
}

const serviceName = "xdao.claimvault.market.v1.Market"

type serverMethod = func(MarketServer, context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)

// unary adapts a MarketServer method expression to the grpc handler shape.
// All methods share the BytesValue signature, so one adapter serves them all.
func unary(name string, call serverMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + serviceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MarketServer), ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Market_ServiceDesc is the grpc.ServiceDesc for the Market service.
var Market_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MarketServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary("Register", MarketServer.Register)},
		{MethodName: "Disclose", Handler: unary("Disclose", MarketServer.Disclose)},
		{MethodName: "GetCard", Handler: unary("GetCard", MarketServer.GetCard)},
		{MethodName: "ListCard", Handler: unary("ListCard", MarketServer.ListCard)},
		{MethodName: "UpdatePrice", Handler: unary("UpdatePrice", MarketServer.UpdatePrice)},
		{MethodName: "SendBuyRequest", Handler: unary("SendBuyRequest", MarketServer.SendBuyRequest)},
		{MethodName: "AcceptBuyRequest", Handler: unary("AcceptBuyRequest", MarketServer.AcceptBuyRequest)},
		{MethodName: "RemoveCard", Handler: unary("RemoveCard", MarketServer.RemoveCard)},
		{MethodName: "VerifyCard", Handler: unary("VerifyCard", MarketServer.VerifyCard)},
		{MethodName: "GetListing", Handler: unary("GetListing", MarketServer.GetListing)},
		{MethodName: "Deposit", Handler: unary("Deposit", MarketServer.Deposit)},
		{MethodName: "Balance", Handler: unary("Balance", MarketServer.Balance)},
		{MethodName: "Height", Handler: unary("Height", MarketServer.Height)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "market.proto",
}
