package grpcapi

import "github.com/splinter-rs/splinter-go/wire"

// SubmitProposalRequest/Response and the rest of this file are hand-written
// stand-ins for generated .pb.go message types (see codec.go): plain
// structs the jsonCodec marshals directly, one pair per connector.
// AdminServiceClient/ScabbardClient method. Every request carries Identity,
// the caller's permission-check identity, since the connector interfaces
// require one.

type SubmitProposalRequest struct {
	Identity string
	Circuit  wire.Circuit
}

type SubmitProposalResponse struct {
	Proposal wire.CircuitProposal
}

type SubmitDisbandRequest struct {
	Identity  string
	CircuitID string
}

type SubmitDisbandResponse struct {
	Proposal wire.CircuitProposal
}

type GetCircuitRequest struct {
	Identity  string
	CircuitID string
}

type GetCircuitResponse struct {
	Circuit wire.Circuit
}

type ListCircuitsRequest struct {
	Identity       string
	ManagementType string
}

type ListCircuitsResponse struct {
	Circuits []wire.Circuit
}

type ListEventsSinceRequest struct {
	Identity       string
	LastSeenID     int64
	ManagementType string
}

type ListEventsSinceResponse struct {
	Events []wire.AdminServiceEvent
}

type SubmitBatchRequest struct {
	Identity  string
	CircuitID string
	ServiceID string
	Batch     wire.Batch
}

type SubmitBatchResponse struct{}

type GetBatchStatusRequest struct {
	Identity  string
	CircuitID string
	ServiceID string
	BatchID   string
}

type GetBatchStatusResponse struct {
	Status wire.BatchStatus
	Found  bool
}

type GetStateAtRequest struct {
	Identity  string
	CircuitID string
	ServiceID string
	Root      string
	Address   string
}

type GetStateAtResponse struct {
	Value []byte
	Found bool
}
