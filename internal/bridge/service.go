// Package bridge lets other processes assign configs to live entities over gRPC.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/store"
)

const ServiceName = "heelshift.bridge.v1.AssignmentBridge"

// AssignmentBridgeServer is the server API for the assignment bridge.
// Messages are plain structs so peers need no generated code.
type AssignmentBridgeServer interface {
	Assign(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Revoke(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	List(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Register installs srv on s.
func Register(s grpc.ServiceRegistrar, srv AssignmentBridgeServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssignmentBridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Assign", Handler: assignHandler},
		{MethodName: "Revoke", Handler: revokeHandler},
		{MethodName: "List", Handler: listHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "heelshift/bridge/v1/bridge.proto",
}

func assignHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssignmentBridgeServer).Assign(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Assign"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssignmentBridgeServer).Assign(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func revokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssignmentBridgeServer).Revoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Revoke"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssignmentBridgeServer).Revoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssignmentBridgeServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/List"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssignmentBridgeServer).List(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type assignRequest struct {
	EntityID *uint32             `json:"entity_id"`
	Source   string              `json:"source"`
	Config   *model.EntityConfig `json:"config"`
}

// Service writes external assignments into the store.
type Service struct {
	store *store.Store
	log   *log.Logger
}

func NewService(s *store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{store: s, log: logger}
}

func (s *Service) Assign(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var req assignRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "assign: %v", err)
	}
	if req.EntityID == nil {
		return nil, status.Error(codes.InvalidArgument, "assign: entity_id is required")
	}
	if req.Config == nil {
		return nil, status.Error(codes.InvalidArgument, "assign: config is required")
	}
	for i, r := range req.Config.Offsets {
		if r == nil {
			return nil, status.Errorf(codes.InvalidArgument, "assign: offsets[%d] is empty", i)
		}
	}
	for i, r := range req.Config.Emotes {
		if r == nil {
			return nil, status.Errorf(codes.InvalidArgument, "assign: emotes[%d] is empty", i)
		}
	}
	req.Config.Normalize()
	s.store.Assign(*req.EntityID, model.NewExternalConfig(req.Source, *req.Config))
	s.log.Printf("bridge: entity %d assigned by %q", *req.EntityID, req.Source)
	return &emptypb.Empty{}, nil
}

func (s *Service) Revoke(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var req assignRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "revoke: %v", err)
	}
	if req.EntityID == nil {
		return nil, status.Error(codes.InvalidArgument, "revoke: entity_id is required")
	}
	if s.store.Revoke(*req.EntityID) {
		s.log.Printf("bridge: entity %d revoked", *req.EntityID)
	}
	return &emptypb.Empty{}, nil
}

func (s *Service) List(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	ids := s.store.ExternalIDs()
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = float64(id)
	}
	out, err := structpb.NewStruct(map[string]any{"entity_ids": vals})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list: %v", err)
	}
	return out, nil
}

func decodeStruct(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
