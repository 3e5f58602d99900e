package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"continuity.org/internal/bia"
	"continuity.org/internal/identity"
	"continuity.org/internal/navigation"
	"continuity.org/internal/obs"
)

const assessmentService = "continuity.v1.Assessment"

// AssessmentServer exposes the scoring and navigation engines. Payloads are
// google.protobuf.Struct documents shaped like the HTTP API bodies.
type AssessmentServer interface {
	ScoreImpacts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeriveMetrics(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Navigation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(AssessmentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var assessmentServiceDesc = grpc.ServiceDesc{
	ServiceName: assessmentService,
	HandlerType: (*AssessmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreImpacts", Handler: structHandler("ScoreImpacts", AssessmentServer.ScoreImpacts)},
		{MethodName: "DeriveMetrics", Handler: structHandler("DeriveMetrics", AssessmentServer.DeriveMetrics)},
		{MethodName: "Navigation", Handler: structHandler("Navigation", AssessmentServer.Navigation)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "continuity/v1/assessment.proto",
}

func structHandler(method string, call structCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AssessmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + assessmentService + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AssessmentServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterAssessmentServer adds the assessment service to s.
func RegisterAssessmentServer(s grpc.ServiceRegistrar, srv AssessmentServer) {
	s.RegisterService(&assessmentServiceDesc, srv)
}

// AssessmentClient calls the assessment service.
type AssessmentClient struct {
	cc grpc.ClientConnInterface
}

func NewAssessmentClient(cc grpc.ClientConnInterface) *AssessmentClient {
	return &AssessmentClient{cc: cc}
}

func (c *AssessmentClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+assessmentService+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AssessmentClient) ScoreImpacts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ScoreImpacts", in, opts...)
}

func (c *AssessmentClient) DeriveMetrics(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "DeriveMetrics", in, opts...)
}

func (c *AssessmentClient) Navigation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Navigation", in, opts...)
}

// GRPCServer implements AssessmentServer and reports readiness through the
// standard health service.
type GRPCServer struct {
	readiness readinessChecker
	version   string
}

// NewGRPCServer creates the gRPC service wrapper.
func NewGRPCServer(r readinessChecker, version string) *GRPCServer {
	if r == nil {
		r = ReadyProbe{}
	}
	return &GRPCServer{readiness: r, version: version}
}

// Register installs the assessment and health services on gs.
func (s *GRPCServer) Register(gs *grpc.Server) *health.Server {
	RegisterAssessmentServer(gs, s)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// UpdateHealth probes readiness and publishes the result for the whole
// server and the assessment service.
func (s *GRPCServer) UpdateHealth(ctx context.Context, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	} else {
		obs.SetReady(true)
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(assessmentService, st)
}

type scoreRequest struct {
	Answers bia.Answers `json:"answers"`
}

type deriveRequest struct {
	Priority  string                 `json:"priority"`
	Responses []bia.RecoveryResponse `json:"responses"`
}

type navigationRequest struct {
	Path     string            `json:"path"`
	Identity identity.Snapshot `json:"identity"`
}

func (s *GRPCServer) ScoreImpacts(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req scoreRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	scores, err := bia.ScoreImpacts(req.Answers)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(scores)
}

func (s *GRPCServer) DeriveMetrics(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req deriveRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	priority, err := bia.ParsePriority(req.Priority)
	if err != nil {
		return nil, grpcError(err)
	}
	m, err := bia.DeriveMetrics(bia.BusinessProcess{Priority: priority}, req.Responses)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(m)
}

func (s *GRPCServer) Navigation(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req navigationRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = navigation.RootPath
	}
	if req.Identity.Kind == "" {
		req.Identity.Kind = identity.Kind(identity.Unauthenticated{})
	}
	res, err := req.Identity.Resolution()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "identity: %v", err)
	}
	return toStruct(navigationResponse{
		State:    navigation.For(path, res.Identity),
		Decision: navigation.Guard(path, res.Identity),
	})
}

func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, bia.ErrInvalidAnswer), errors.Is(err, bia.ErrInvalidPriority),
		errors.Is(err, bia.ErrEmptyCategory):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("assessment: %v", err))
	}
}
