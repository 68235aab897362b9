package scabbard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// fakeConsensusNetwork wires two or more Consensus engines together
// directly, standing in for the mesh/peer-backed Network used in
// production.
type fakeConsensusNetwork struct {
	mu     sync.Mutex
	byID   map[string]*Consensus
	fromID string
}

func newFakeConsensusNetwork() *fakeConsensusNetwork {
	return &fakeConsensusNetwork{byID: make(map[string]*Consensus)}
}

func (n *fakeConsensusNetwork) register(serviceID string, c *Consensus) { n.byID[serviceID] = c }

type perNodeConsensusSender struct {
	serviceID string
	net       *fakeConsensusNetwork
}

func (s *perNodeConsensusSender) SendConsensus(serviceID string, msg wire.ConsensusMessage) error {
	s.net.mu.Lock()
	target := s.net.byID[serviceID]
	s.net.mu.Unlock()
	if target == nil {
		return nil
	}
	return target.HandleConsensusMessage(s.serviceID, msg)
}

func mustOpenScabbardStore(t *testing.T) scabbardstore.Store {
	t.Helper()
	store, err := scabbardstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConsensus_CommitsOnUnanimousAccept(t *testing.T) {
	net := newFakeConsensusNetwork()

	alphaStore := mustOpenScabbardStore(t)
	betaStore := mustOpenScabbardStore(t)
	alphaTree := mustOpenStateTree(t)
	betaTree := mustOpenStateTree(t)

	alpha := NewConsensus("alpha", []string{"beta"}, alphaStore, &perNodeConsensusSender{serviceID: "alpha", net: net}, StubExecutor{}, alphaTree, time.Second, nil)
	beta := NewConsensus("beta", []string{"alpha"}, betaStore, &perNodeConsensusSender{serviceID: "beta", net: net}, StubExecutor{}, betaTree, time.Second, nil)
	net.register("alpha", alpha)
	net.register("beta", beta)

	require.Equal(t, "alpha", alpha.Coordinator())
	require.True(t, alpha.IsCoordinator())
	require.False(t, beta.IsCoordinator())

	batch := wire.Batch{
		BatchID: "batch-1",
		Transactions: []wire.Transaction{
			{FamilyName: "test", Nonce: []byte("n1"), Payload: []byte("hello")},
		},
	}
	require.NoError(t, alpha.ProposeBatch(batch))

	alphaEntries, err := alphaStore.ListCommitEntries("alpha")
	require.NoError(t, err)
	require.Len(t, alphaEntries, 1)
	require.Equal(t, wire.DecisionCommit, alphaEntries[0].Decision)

	betaEntries, err := betaStore.ListCommitEntries("beta")
	require.NoError(t, err)
	require.Len(t, betaEntries, 1)
	require.Equal(t, wire.DecisionCommit, betaEntries[0].Decision)

	alphaNotifications, err := alphaStore.ListPendingNotifications("alpha")
	require.NoError(t, err)
	require.Len(t, alphaNotifications, 3, "start, vote request and commit each leave a pending notification for the supervisor to drain")
	require.Equal(t, scabbardstore.NotifyCommit, alphaNotifications[2].Kind)
}

func TestConsensus_OnlyCoordinatorMayPropose(t *testing.T) {
	net := newFakeConsensusNetwork()
	store := mustOpenScabbardStore(t)
	tree := mustOpenStateTree(t)

	beta := NewConsensus("beta", []string{"alpha"}, store, &perNodeConsensusSender{serviceID: "beta", net: net}, StubExecutor{}, tree, time.Second, nil)
	net.register("beta", beta)

	err := beta.ProposeBatch(wire.Batch{BatchID: "batch-2"})
	require.Error(t, err)
}

func TestConsensus_AlarmAbortsStalledEpoch(t *testing.T) {
	net := newFakeConsensusNetwork()
	alphaStore := mustOpenScabbardStore(t)
	alphaTree := mustOpenStateTree(t)

	// beta is never registered with the network, so its vote response never
	// arrives: the epoch must be aborted by the alarm instead of hanging.
	alpha := NewConsensus("alpha", []string{"beta"}, alphaStore, &perNodeConsensusSender{serviceID: "alpha", net: net}, StubExecutor{}, alphaTree, time.Millisecond, nil)
	net.register("alpha", alpha)

	require.NoError(t, alpha.ProposeBatch(wire.Batch{BatchID: "batch-3"}))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, alpha.CheckAlarm(time.Now()))

	entries, err := alphaStore.ListCommitEntries("alpha")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, wire.DecisionAbort, entries[0].Decision)
}
