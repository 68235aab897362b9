package node

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/config"
	"github.com/splinter-rs/splinter-go/wire"
)

const testAdminIdentity = "test-admin-key"

func testConfig(t *testing.T) config.NodeConfig {
	t.Helper()
	cfg := config.Default()
	cfg.NodeID = "alpha"
	cfg.Endpoints = []string{"tcp://127.0.0.1:0"}
	cfg.DataDir = t.TempDir()
	cfg.AdminKeys = []string{testAdminIdentity}
	return cfg
}

func TestNode_SingleMemberCircuitCommitsAndRunsLocalService(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Shutdown() })

	circuit := wire.Circuit{
		CircuitID: "00011-aaaaa",
		Roster: []wire.Service{
			{ServiceID: "sabc1", ServiceType: "scabbard", AllowedNodes: []string{"alpha"}},
		},
		Members: []wire.Member{
			{NodeID: "alpha", Endpoints: cfg.Endpoints},
		},
		AuthorizationType: wire.AuthorizationTrust,
		Persistence:       wire.PersistenceAny,
		Durability:        wire.DurabilityNoDurability,
		Routes:            wire.RouteAny,
		ManagementType:    "test",
	}

	_, err = n.AdminClient.SubmitProposal(testAdminIdentity, circuit)
	require.NoError(t, err)

	got, err := n.AdminClient.GetCircuit(testAdminIdentity, circuit.CircuitID)
	require.NoError(t, err)
	require.Equal(t, circuit.CircuitID, got.CircuitID)

	batch := wire.Batch{BatchID: "batch-1", Transactions: []wire.Transaction{
		{FamilyName: "test", Nonce: []byte("n"), Payload: []byte("hi")},
	}}
	require.NoError(t, n.ScabbardClient.SubmitBatch(testAdminIdentity, circuit.CircuitID, "sabc1", batch))

	status, ok := n.ScabbardClient.GetBatchStatus(testAdminIdentity, circuit.CircuitID, "sabc1", "batch-1")
	require.True(t, ok)
	require.Equal(t, wire.BatchStatusCommitted, status)
}

func TestNode_ConnectorRejectsUnauthorizedIdentity(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Shutdown() })

	_, err = n.AdminClient.SubmitProposal("no-such-key", wire.Circuit{CircuitID: "00022-bbbbb"})
	require.Error(t, err)

	_, err = n.AdminClient.GetCircuit("no-such-key", "00022-bbbbb")
	require.Error(t, err)
}
