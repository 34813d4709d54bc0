// Package server exposes the command surface over gRPC.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/contentlock/internal/service"
)

// ServiceName is the fully qualified gRPC service. Every command is a
// unary method taking and returning a google.protobuf.Struct whose fields
// are the command's JSON payload.
const ServiceName = "contentlock.v1.PolicyService"

// Config holds gRPC server configuration.
type Config struct {
	Port int
}

// policyServer is the handler type registered with grpc.
type policyServer interface {
	call(ctx context.Context, name string, in *structpb.Struct) (*structpb.Struct, error)
}

// Server implements the PolicyService gRPC server on top of a Service.
type Server struct {
	svc    *service.Service
	logger *slog.Logger
	cfg    Config

	grpcServer *grpc.Server
}

// New creates a gRPC server bound to svc.
func New(cfg Config, svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:        svc,
		logger:     logger,
		cfg:        cfg,
		grpcServer: grpc.NewServer(),
	}
	s.grpcServer.RegisterService(serviceDesc(), s)
	return s
}

// Serve starts the gRPC server on localhost at the configured port.
// Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) call(ctx context.Context, name string, in *structpb.Struct) (*structpb.Struct, error) {
	payload, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, service.KindInvalidRequest)
	}
	cmd, err := service.DecodeCommand(name, payload)
	if err != nil {
		return nil, toStatus(err)
	}
	result, err := s.svc.Dispatch(ctx, cmd)
	if err != nil {
		if !service.IsUserError(err) {
			s.logger.Error("command failed", "command", name, "error", err)
		}
		return nil, toStatus(err)
	}
	return toStruct(result)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// toStatus carries the error kind as the status message so clients can
// recover it with service-level comparisons.
func toStatus(err error) error {
	kind := service.ErrorKind(err)
	switch service.Classify(err) {
	case service.ClassPrecondition:
		return status.Error(codes.FailedPrecondition, kind)
	case service.ClassDenied:
		return status.Error(codes.PermissionDenied, kind)
	case service.ClassInvalid:
		return status.Error(codes.InvalidArgument, kind)
	default:
		return status.Error(codes.Internal, kind)
	}
}

func serviceDesc() *grpc.ServiceDesc {
	names := service.CommandNames()
	methods := make([]grpc.MethodDesc, 0, len(names))
	for _, name := range names {
		methods = append(methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    methodHandler(name),
		})
	}
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*policyServer)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    "contentlock/v1/policy.proto",
	}
}

func methodHandler(name string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return srv.(policyServer).call(ctx, name, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(name),
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FullMethod returns the gRPC method path for a command.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
