package nbi

import (
	"context"
	"maps"
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// VesselServiceName is the fully-qualified gRPC service name.
const VesselServiceName = "vessel.v1.VesselService"

// VesselServiceServer is the server API of the vessel NBI. Every method
// takes and returns a google.protobuf.Struct carrying the JSON form of the
// request and response types in this package.
type VesselServiceServer interface {
	ListVessels(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVessel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SpawnVessel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveVessel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDetails(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Command(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTelemetry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RestoreSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(VesselServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var vesselMethods = map[string]unaryMethod{
	"ListVessels":     VesselServiceServer.ListVessels,
	"GetVessel":       VesselServiceServer.GetVessel,
	"SpawnVessel":     VesselServiceServer.SpawnVessel,
	"RemoveVessel":    VesselServiceServer.RemoveVessel,
	"Dock":            VesselServiceServer.Dock,
	"Undock":          VesselServiceServer.Undock,
	"GetDetails":      VesselServiceServer.GetDetails,
	"Command":         VesselServiceServer.Command,
	"GetTelemetry":    VesselServiceServer.GetTelemetry,
	"SaveSnapshot":    VesselServiceServer.SaveSnapshot,
	"RestoreSnapshot": VesselServiceServer.RestoreSnapshot,
	"ListSnapshots":   VesselServiceServer.ListSnapshots,
}

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + VesselServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(VesselServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(VesselServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// VesselServiceDesc describes the service for grpc.ServiceRegistrar.
var VesselServiceDesc = func() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: VesselServiceName,
		HandlerType: (*VesselServiceServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "vessel/v1/vessel_service.proto",
	}
	for _, name := range slices.Sorted(maps.Keys(vesselMethods)) {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name, vesselMethods[name]),
		})
	}
	return desc
}()

// RegisterVesselServiceServer registers srv on s.
func RegisterVesselServiceServer(s grpc.ServiceRegistrar, srv VesselServiceServer) {
	s.RegisterService(&VesselServiceDesc, srv)
}

// VesselServiceClient calls the vessel NBI with typed Go values, encoding
// them to and from google.protobuf.Struct.
type VesselServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewVesselServiceClient wraps a client connection.
func NewVesselServiceClient(cc grpc.ClientConnInterface) *VesselServiceClient {
	return &VesselServiceClient{cc: cc}
}

// Call invokes method with req and decodes the reply into resp. resp may
// be nil when the reply is not needed.
func (c *VesselServiceClient) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	if req == nil {
		req = struct{}{}
	}
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+VesselServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decodeStruct(out, resp)
}
