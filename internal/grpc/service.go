package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "poolscore.v1.ScoringService"

// ScoringServer is the server API of poolscore.v1.ScoringService. Messages
// are well-known types so no generated code is needed on either side.
type ScoringServer interface {
	GetStandings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetParticipant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recompute(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamEvents(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterScoringServer registers srv on s
func RegisterScoringServer(s grpc.ServiceRegistrar, srv ScoringServer) {
	s.RegisterService(&ScoringServiceDesc, srv)
}

func structMethod(name string, call func(ScoringServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScoringServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ScoringServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

func recomputeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServer).Recompute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Recompute"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScoringServer).Recompute(ctx, req.(*emptypb.Empty))
	})
}

func streamEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ScoringServer).StreamEvents(in, stream)
}

// ScoringServiceDesc describes poolscore.v1.ScoringService
var ScoringServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		structMethod("GetStandings", ScoringServer.GetStandings),
		structMethod("GetLeaderboard", ScoringServer.GetLeaderboard),
		structMethod("GetParticipant", ScoringServer.GetParticipant),
		{MethodName: "Recompute", Handler: recomputeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "poolscore/v1/scoring.proto",
}

// Client calls poolscore.v1.ScoringService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStandings fetches one table, or all of them for an empty code
func (c *Client) GetStandings(ctx context.Context, code string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, _ := structpb.NewStruct(map[string]interface{}{"code": code})
	return c.invoke(ctx, "GetStandings", in, opts...)
}

// GetLeaderboard fetches the top ranked participants; top <= 0 fetches all
func (c *Client) GetLeaderboard(ctx context.Context, top int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, _ := structpb.NewStruct(map[string]interface{}{"top": top})
	return c.invoke(ctx, "GetLeaderboard", in, opts...)
}

// GetParticipant fetches a participant breakdown
func (c *Client) GetParticipant(ctx context.Context, id int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, _ := structpb.NewStruct(map[string]interface{}{"id": id})
	return c.invoke(ctx, "GetParticipant", in, opts...)
}

// Recompute triggers a recomputation cycle
func (c *Client) Recompute(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Recompute", &emptypb.Empty{}, opts...)
}

// StreamEvents opens the event stream; call Recv until it errors
func (c *Client) StreamEvents(ctx context.Context, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ScoringServiceDesc.Streams[0], "/"+ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// EventStream receives events from StreamEvents
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event
func (s *EventStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}
