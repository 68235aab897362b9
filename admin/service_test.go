package admin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// fakeSender routes AdminMessages directly into other in-test Services,
// standing in for the reactor/peer-manager-backed Network.
type fakeSender struct {
	mu       sync.Mutex
	services map[string]*Service
	sentFrom string
}

func newFakeSender() *fakeSender {
	return &fakeSender{services: make(map[string]*Service)}
}

func (f *fakeSender) register(nodeID string, svc *Service) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[nodeID] = svc
}

func (f *fakeSender) SendToNode(nodeID string, msg wire.AdminMessage) error {
	f.mu.Lock()
	target, ok := f.services[nodeID]
	from := f.sentFrom
	f.mu.Unlock()
	if !ok {
		return ErrPeerUnavailable
	}
	return target.HandleMessage(from, msg)
}

func mustOpenAdminStore(t *testing.T) adminstore.Store {
	t.Helper()
	store, err := adminstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCircuit(id string) wire.Circuit {
	return wire.Circuit{
		CircuitID: id,
		Roster: []wire.Service{
			{ServiceID: "sabc1", ServiceType: "scabbard", AllowedNodes: []string{"alpha", "beta"}},
		},
		Members: []wire.Member{
			{NodeID: "alpha", Endpoints: []string{"tcp://alpha:8080"}},
			{NodeID: "beta", Endpoints: []string{"tcp://beta:8080"}},
		},
		AuthorizationType: wire.AuthorizationTrust,
		Persistence:       wire.PersistenceAny,
		Durability:        wire.DurabilityNoDurability,
		Routes:            wire.RouteAny,
		ManagementType:    "test-app",
	}
}

// perNodeSender tags outgoing sends with the sending node so fakeSender can
// deliver them with the right "from" field without a race between tests.
type perNodeSender struct {
	nodeID string
	shared *fakeSender
}

func (p *perNodeSender) SendToNode(nodeID string, msg wire.AdminMessage) error {
	p.shared.mu.Lock()
	p.shared.sentFrom = p.nodeID
	p.shared.mu.Unlock()
	return p.shared.SendToNode(nodeID, msg)
}

func newTestNetwork(nodeIDs ...string) (*fakeSender, map[string]*perNodeSender) {
	shared := newFakeSender()
	senders := make(map[string]*perNodeSender, len(nodeIDs))
	for _, id := range nodeIDs {
		senders[id] = &perNodeSender{nodeID: id, shared: shared}
	}
	return shared, senders
}

func TestSubmitProposal_CommitsOnUnanimousAccept(t *testing.T) {
	shared, senders := newTestNetwork("alpha", "beta")

	alphaStore := mustOpenAdminStore(t)
	betaStore := mustOpenAdminStore(t)
	alphaRouting := routing.New()
	betaRouting := routing.New()

	alphaSvc := NewService("alpha", alphaStore, alphaRouting, senders["alpha"], nil, nil, nil)
	betaSvc := NewService("beta", betaStore, betaRouting, senders["beta"], nil, nil, nil)
	shared.register("alpha", alphaSvc)
	shared.register("beta", betaSvc)

	circuit := testCircuit("abcde-12345")
	proposal, err := alphaSvc.SubmitProposal(circuit)
	require.NoError(t, err)
	require.Equal(t, circuit.CircuitID, proposal.CircuitID)

	committed, err := alphaStore.GetCircuit(circuit.CircuitID)
	require.NoError(t, err)
	require.Equal(t, circuit.CircuitID, committed.CircuitID)

	committedAtBeta, err := betaStore.GetCircuit(circuit.CircuitID)
	require.NoError(t, err)
	require.Equal(t, circuit.CircuitID, committedAtBeta.CircuitID)

	_, err = alphaStore.GetProposal(circuit.CircuitID)
	require.Error(t, err)

	node, ok := alphaRouting.Node("beta")
	require.True(t, ok)
	require.Equal(t, []string{"tcp://beta:8080"}, node.Endpoints)
}

func TestSubmitProposal_RejectedVoteDiscardsProposal(t *testing.T) {
	shared, senders := newTestNetwork("alpha", "beta")

	alphaStore := mustOpenAdminStore(t)
	betaStore := mustOpenAdminStore(t)

	alphaSvc := NewService("alpha", alphaStore, routing.New(), senders["alpha"], nil, nil, nil)
	betaSvc := NewService("beta", betaStore, routing.New(), senders["beta"], nil, rejectAllPolicy{}, nil)
	shared.register("alpha", alphaSvc)
	shared.register("beta", betaSvc)

	circuit := testCircuit("rjctd-00001")
	_, err := alphaSvc.SubmitProposal(circuit)
	require.NoError(t, err)

	_, err = alphaStore.GetCircuit(circuit.CircuitID)
	require.Error(t, err)
	_, err = alphaStore.GetProposal(circuit.CircuitID)
	require.Error(t, err)
}

func TestSubmitDisband_RemovesCommittedCircuit(t *testing.T) {
	shared, senders := newTestNetwork("alpha", "beta")

	alphaStore := mustOpenAdminStore(t)
	betaStore := mustOpenAdminStore(t)
	alphaRouting := routing.New()
	betaRouting := routing.New()

	alphaSvc := NewService("alpha", alphaStore, alphaRouting, senders["alpha"], nil, nil, nil)
	betaSvc := NewService("beta", betaStore, betaRouting, senders["beta"], nil, nil, nil)
	shared.register("alpha", alphaSvc)
	shared.register("beta", betaSvc)

	circuit := testCircuit("dsbnd-00001")
	_, err := alphaSvc.SubmitProposal(circuit)
	require.NoError(t, err)

	_, err = alphaSvc.SubmitDisband(circuit.CircuitID)
	require.NoError(t, err)

	_, err = alphaStore.GetCircuit(circuit.CircuitID)
	require.Error(t, err)
	_, err = betaStore.GetCircuit(circuit.CircuitID)
	require.Error(t, err)

	_, ok := alphaRouting.Circuit(circuit.CircuitID)
	require.False(t, ok)
}

func TestHandleProposalMessage_RejectsHashMismatch(t *testing.T) {
	store := mustOpenAdminStore(t)
	svc := NewService("beta", store, routing.New(), newFakeSender(), nil, nil, nil)

	circuit := testCircuit("tmprd-00001")
	proposal := wire.CircuitProposal{
		ProposalType:    wire.ProposalCreate,
		CircuitID:       circuit.CircuitID,
		CircuitHash:     "not-the-real-hash",
		ProposedCircuit: circuit,
		RequesterNodeID: "alpha",
	}

	err := svc.HandleMessage("alpha", wire.AdminMessage{Kind: wire.AdminProposalRequest, Proposal: proposal})
	require.ErrorIs(t, err, ErrHashMismatch)
}

type rejectAllPolicy struct{}

func (rejectAllPolicy) Decide(wire.CircuitProposal) wire.Vote { return wire.VoteReject }
