package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/wire"
)

const testIdentity = "test-identity"

type fakeAdmin struct {
	circuits map[string]wire.Circuit
}

func (f *fakeAdmin) SubmitProposal(identity string, circuit wire.Circuit) (wire.CircuitProposal, error) {
	f.circuits[circuit.CircuitID] = circuit
	return wire.CircuitProposal{CircuitID: circuit.CircuitID, ProposedCircuit: circuit}, nil
}

func (f *fakeAdmin) SubmitDisband(identity, circuitID string) (wire.CircuitProposal, error) {
	return wire.CircuitProposal{CircuitID: circuitID}, nil
}

func (f *fakeAdmin) GetCircuit(identity, circuitID string) (wire.Circuit, error) {
	c, ok := f.circuits[circuitID]
	if !ok {
		return wire.Circuit{}, splintererror.New(splintererror.NotFound, "circuit %s not found", circuitID)
	}
	return c, nil
}

func (f *fakeAdmin) ListCircuits(identity, managementType string) ([]wire.Circuit, error) {
	var out []wire.Circuit
	for _, c := range f.circuits {
		if managementType == "" || c.ManagementType == managementType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAdmin) ListEventsSince(identity string, lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	return nil, nil
}

type fakeScabbard struct {
	statuses map[string]wire.BatchStatus
}

func (f *fakeScabbard) SubmitBatch(identity, circuitID, serviceID string, batch wire.Batch) error {
	f.statuses[batch.BatchID] = wire.BatchStatusCommitted
	return nil
}

func (f *fakeScabbard) GetBatchStatus(identity, circuitID, serviceID, batchID string) (wire.BatchStatus, bool) {
	status, ok := f.statuses[batchID]
	return status, ok
}

func (f *fakeScabbard) GetStateAt(identity, circuitID, serviceID, root, address string) ([]byte, bool, error) {
	if address == "known" {
		return []byte("value"), true, nil
	}
	return nil, false, nil
}

func startServer(t *testing.T, admin *fakeAdmin, scabbard *fakeScabbard) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	Register(grpcServer, NewServer(admin, scabbard))
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.GracefulStop)

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock(), grpc.WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestClientServer_SubmitProposalAndGetCircuit(t *testing.T) {
	admin := &fakeAdmin{circuits: make(map[string]wire.Circuit)}
	scabbard := &fakeScabbard{statuses: make(map[string]wire.BatchStatus)}
	conn := startServer(t, admin, scabbard)
	client := NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	circuit := wire.Circuit{CircuitID: "01234-abcde", ManagementType: "test"}
	proposal, err := client.SubmitProposal(ctx, testIdentity, circuit)
	require.NoError(t, err)
	require.Equal(t, "01234-abcde", proposal.CircuitID)

	got, err := client.GetCircuit(ctx, testIdentity, "01234-abcde")
	require.NoError(t, err)
	require.Equal(t, "test", got.ManagementType)

	list, err := client.ListCircuits(ctx, testIdentity, "test")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestClientServer_SubmitBatchAndGetStatus(t *testing.T) {
	admin := &fakeAdmin{circuits: make(map[string]wire.Circuit)}
	scabbard := &fakeScabbard{statuses: make(map[string]wire.BatchStatus)}
	conn := startServer(t, admin, scabbard)
	client := NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	batch := wire.Batch{BatchID: "batch-1"}
	require.NoError(t, client.SubmitBatch(ctx, testIdentity, "01234-abcde", "svc1", batch))

	status, found, err := client.GetBatchStatus(ctx, testIdentity, "01234-abcde", "svc1", "batch-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, wire.BatchStatusCommitted, status)

	value, found, err := client.GetStateAt(ctx, testIdentity, "01234-abcde", "svc1", "", "known")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), value)

	_, found, err = client.GetStateAt(ctx, testIdentity, "01234-abcde", "svc1", "", "unknown")
	require.NoError(t, err)
	require.False(t, found)
}
