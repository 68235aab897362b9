package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/splinter-rs/splinter-go/wire"
)

// Client is a thin typed wrapper around a *grpc.ClientConn dialed with the
// jsonCodec registered in codec.go, grounded on the teacher's
// grpcutils.Dial usage of a bare ClientConn plus hand-written call sites.
// Every method takes identity first, forwarded as each request's Identity
// field for the server's permission checks.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) SubmitProposal(ctx context.Context, identity string, circuit wire.Circuit) (wire.CircuitProposal, error) {
	req := &SubmitProposalRequest{Identity: identity, Circuit: circuit}
	resp := new(SubmitProposalResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/SubmitProposal", req, resp); err != nil {
		return wire.CircuitProposal{}, err
	}
	return resp.Proposal, nil
}

func (c *Client) SubmitDisband(ctx context.Context, identity, circuitID string) (wire.CircuitProposal, error) {
	req := &SubmitDisbandRequest{Identity: identity, CircuitID: circuitID}
	resp := new(SubmitDisbandResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/SubmitDisband", req, resp); err != nil {
		return wire.CircuitProposal{}, err
	}
	return resp.Proposal, nil
}

func (c *Client) GetCircuit(ctx context.Context, identity, circuitID string) (wire.Circuit, error) {
	req := &GetCircuitRequest{Identity: identity, CircuitID: circuitID}
	resp := new(GetCircuitResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/GetCircuit", req, resp); err != nil {
		return wire.Circuit{}, err
	}
	return resp.Circuit, nil
}

func (c *Client) ListCircuits(ctx context.Context, identity, managementType string) ([]wire.Circuit, error) {
	req := &ListCircuitsRequest{Identity: identity, ManagementType: managementType}
	resp := new(ListCircuitsResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/ListCircuits", req, resp); err != nil {
		return nil, err
	}
	return resp.Circuits, nil
}

func (c *Client) ListEventsSince(ctx context.Context, identity string, lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	req := &ListEventsSinceRequest{Identity: identity, LastSeenID: lastSeenID, ManagementType: managementType}
	resp := new(ListEventsSinceResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/ListEventsSince", req, resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) SubmitBatch(ctx context.Context, identity, circuitID, serviceID string, batch wire.Batch) error {
	req := &SubmitBatchRequest{Identity: identity, CircuitID: circuitID, ServiceID: serviceID, Batch: batch}
	resp := new(SubmitBatchResponse)
	return c.conn.Invoke(ctx, "/splinter.Connector/SubmitBatch", req, resp)
}

func (c *Client) GetBatchStatus(ctx context.Context, identity, circuitID, serviceID, batchID string) (wire.BatchStatus, bool, error) {
	req := &GetBatchStatusRequest{Identity: identity, CircuitID: circuitID, ServiceID: serviceID, BatchID: batchID}
	resp := new(GetBatchStatusResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/GetBatchStatus", req, resp); err != nil {
		return wire.BatchStatusPending, false, err
	}
	return resp.Status, resp.Found, nil
}

func (c *Client) GetStateAt(ctx context.Context, identity, circuitID, serviceID, root, address string) ([]byte, bool, error) {
	req := &GetStateAtRequest{Identity: identity, CircuitID: circuitID, ServiceID: serviceID, Root: root, Address: address}
	resp := new(GetStateAtResponse)
	if err := c.conn.Invoke(ctx, "/splinter.Connector/GetStateAt", req, resp); err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Found, nil
}
