package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/admin"
	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/scabbard"
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/wire"
)

type noopSender struct{}

func (noopSender) SendToNode(nodeID string, msg wire.AdminMessage) error { return nil }

func TestAdminAdapter_SubmitProposalAndRead(t *testing.T) {
	store, err := adminstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := admin.NewService("alpha", store, routing.New(), noopSender{}, nil, nil, nil)
	checker := NewNodeKeys(map[string][]Permission{
		"admin-key": {PermissionCircuitWrite, PermissionCircuitRead},
	})
	adapter := NewAdminAdapter(svc, checker)

	circuit := wire.Circuit{
		CircuitID:         "01234-abcde",
		Roster:            []wire.Service{{ServiceID: "sabc1", ServiceType: "scabbard", AllowedNodes: []string{"alpha"}}},
		Members:           []wire.Member{{NodeID: "alpha", Endpoints: []string{"tcp://alpha:8080"}}},
		AuthorizationType: wire.AuthorizationTrust,
		Persistence:       wire.PersistenceAny,
		Durability:        wire.DurabilityNoDurability,
		Routes:            wire.RouteAny,
		ManagementType:    "test",
	}

	_, err = adapter.SubmitProposal("admin-key", circuit)
	require.NoError(t, err)

	got, err := adapter.GetCircuit("admin-key", circuit.CircuitID)
	require.NoError(t, err)
	require.Equal(t, circuit.CircuitID, got.CircuitID)

	all, err := adapter.ListCircuits("admin-key", "test")
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = adapter.SubmitProposal("stranger", circuit)
	require.Error(t, err)
}

type noopConsensusSender struct{}

func (noopConsensusSender) SendConsensus(serviceID string, msg wire.ConsensusMessage) error {
	return nil
}

func TestScabbardAdapter_SubmitBatchAndReadState(t *testing.T) {
	scabStore, err := scabbardstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = scabStore.Close() })

	tree, err := scabbard.OpenStateTree(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })

	consensus := scabbard.NewConsensus("sabc1", nil, scabStore, noopConsensusSender{}, scabbard.StubExecutor{}, tree, time.Second, nil)
	svc := scabbard.NewService("circuit-1", "sabc1", consensus, tree, scabStore, nil)

	registry := NewScabbardRegistry()
	registry.Register("circuit-1", "sabc1", svc)
	checker := NewNodeKeys(map[string][]Permission{
		"admin-key": {PermissionScabbardWrite, PermissionScabbardRead},
	})
	adapter := NewScabbardAdapter(registry, checker)

	batch := wire.Batch{BatchID: "batch-1", Transactions: []wire.Transaction{
		{FamilyName: "test", Nonce: []byte("n"), Payload: []byte("hi")},
	}}
	require.NoError(t, adapter.SubmitBatch("admin-key", "circuit-1", "sabc1", batch))

	status, ok := adapter.GetBatchStatus("admin-key", "circuit-1", "sabc1", "batch-1")
	require.True(t, ok)
	require.Equal(t, wire.BatchStatusCommitted, status)

	_, _, err = adapter.GetStateAt("admin-key", "circuit-1", "sabc1", "", "nonexistent-address")
	require.Error(t, err)

	_, _, err = adapter.GetStateAt("admin-key", "missing-circuit", "sabc1", "", "addr")
	require.Error(t, err)

	require.Error(t, adapter.SubmitBatch("stranger", "circuit-1", "sabc1", batch))
}
