package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/splinter-rs/splinter-go/connector"
)

// Server adapts connector.AdminServiceClient and connector.ScabbardClient
// to the hand-authored ServiceDesc below, the stand-in for a generated
// UnimplementedConnectorServer.
type Server struct {
	admin    connector.AdminServiceClient
	scabbard connector.ScabbardClient
}

// NewServer wraps the given connector adapters for gRPC registration.
func NewServer(admin connector.AdminServiceClient, scabbard connector.ScabbardClient) *Server {
	return &Server{admin: admin, scabbard: scabbard}
}

// Register registers Server's methods against srv under the splinter
// service name, the hand-written analogue of a generated RegisterXxxServer
// call.
func Register(srv *grpc.Server, s *Server) {
	srv.RegisterService(&serviceDesc, s)
}

func (s *Server) submitProposal(ctx context.Context, req *SubmitProposalRequest) (*SubmitProposalResponse, error) {
	proposal, err := s.admin.SubmitProposal(req.Identity, req.Circuit)
	if err != nil {
		return nil, err
	}
	return &SubmitProposalResponse{Proposal: proposal}, nil
}

func (s *Server) submitDisband(ctx context.Context, req *SubmitDisbandRequest) (*SubmitDisbandResponse, error) {
	proposal, err := s.admin.SubmitDisband(req.Identity, req.CircuitID)
	if err != nil {
		return nil, err
	}
	return &SubmitDisbandResponse{Proposal: proposal}, nil
}

func (s *Server) getCircuit(ctx context.Context, req *GetCircuitRequest) (*GetCircuitResponse, error) {
	circuit, err := s.admin.GetCircuit(req.Identity, req.CircuitID)
	if err != nil {
		return nil, err
	}
	return &GetCircuitResponse{Circuit: circuit}, nil
}

func (s *Server) listCircuits(ctx context.Context, req *ListCircuitsRequest) (*ListCircuitsResponse, error) {
	circuits, err := s.admin.ListCircuits(req.Identity, req.ManagementType)
	if err != nil {
		return nil, err
	}
	return &ListCircuitsResponse{Circuits: circuits}, nil
}

func (s *Server) listEventsSince(ctx context.Context, req *ListEventsSinceRequest) (*ListEventsSinceResponse, error) {
	events, err := s.admin.ListEventsSince(req.Identity, req.LastSeenID, req.ManagementType)
	if err != nil {
		return nil, err
	}
	return &ListEventsSinceResponse{Events: events}, nil
}

func (s *Server) submitBatch(ctx context.Context, req *SubmitBatchRequest) (*SubmitBatchResponse, error) {
	if err := s.scabbard.SubmitBatch(req.Identity, req.CircuitID, req.ServiceID, req.Batch); err != nil {
		return nil, err
	}
	return &SubmitBatchResponse{}, nil
}

func (s *Server) getBatchStatus(ctx context.Context, req *GetBatchStatusRequest) (*GetBatchStatusResponse, error) {
	status, ok := s.scabbard.GetBatchStatus(req.Identity, req.CircuitID, req.ServiceID, req.BatchID)
	return &GetBatchStatusResponse{Status: status, Found: ok}, nil
}

func (s *Server) getStateAt(ctx context.Context, req *GetStateAtRequest) (*GetStateAtResponse, error) {
	value, ok, err := s.scabbard.GetStateAt(req.Identity, req.CircuitID, req.ServiceID, req.Root, req.Address)
	if err != nil {
		return nil, err
	}
	return &GetStateAtResponse{Value: value, Found: ok}, nil
}

// Each handler below follows the shape grpc's protoc-gen-go-grpc emits:
// decode into a concrete request type, invoke the matching Server method,
// run it through the interceptor chain.

func _Connector_SubmitProposal_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitProposalRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.submitProposal(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/SubmitProposal"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.submitProposal(ctx, req.(*SubmitProposalRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_SubmitDisband_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitDisbandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.submitDisband(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/SubmitDisband"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.submitDisband(ctx, req.(*SubmitDisbandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_GetCircuit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetCircuitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.getCircuit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/GetCircuit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.getCircuit(ctx, req.(*GetCircuitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_ListCircuits_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListCircuitsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.listCircuits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/ListCircuits"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.listCircuits(ctx, req.(*ListCircuitsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_ListEventsSince_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListEventsSinceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.listEventsSince(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/ListEventsSince"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.listEventsSince(ctx, req.(*ListEventsSinceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_SubmitBatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.submitBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/SubmitBatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.submitBatch(ctx, req.(*SubmitBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_GetBatchStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetBatchStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.getBatchStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/GetBatchStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.getBatchStatus(ctx, req.(*GetBatchStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Connector_GetStateAt_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetStateAtRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.getStateAt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/splinter.Connector/GetStateAt"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.getStateAt(ctx, req.(*GetStateAtRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "splinter.Connector",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitProposal", Handler: _Connector_SubmitProposal_Handler},
		{MethodName: "SubmitDisband", Handler: _Connector_SubmitDisband_Handler},
		{MethodName: "GetCircuit", Handler: _Connector_GetCircuit_Handler},
		{MethodName: "ListCircuits", Handler: _Connector_ListCircuits_Handler},
		{MethodName: "ListEventsSince", Handler: _Connector_ListEventsSince_Handler},
		{MethodName: "SubmitBatch", Handler: _Connector_SubmitBatch_Handler},
		{MethodName: "GetBatchStatus", Handler: _Connector_GetBatchStatus_Handler},
		{MethodName: "GetStateAt", Handler: _Connector_GetStateAt_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "splinter.proto",
}
