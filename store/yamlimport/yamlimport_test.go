package yamlimport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/store/adminstore"
)

func mustOpenStore(t *testing.T) adminstore.Store {
	t.Helper()
	store, err := adminstore.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

const circuitsYAML = `
circuits:
  - id: "00011-aaaaa"
    roster:
      - service_id: "sabc1"
        service_type: "scabbard"
        allowed_nodes: ["alpha", "beta"]
        arguments: []
    members:
      - node_id: "alpha"
      - node_id: "beta"
    authorization_type: "Trust"
    persistence_strategy: "Any"
    durability: "NoDurability"
    routes: "Any"
    circuit_management_type: "test"
    comments: "imported from legacy yaml"
nodes:
  - identity: "alpha"
    endpoints: ["tcp://127.0.0.1:8000"]
  - identity: "beta"
    endpoints: ["tcp://127.0.0.1:8001"]
`

const proposalsYAML = `
proposals:
  - proposal_type: "Create"
    circuit_id: "00022-bbbbb"
    circuit_hash: "deadbeef"
    circuit:
      id: "00022-bbbbb"
      roster:
        - service_id: "sabc2"
          service_type: "scabbard"
          allowed_nodes: ["alpha"]
          arguments: []
      members:
        - node_id: "alpha"
      authorization_type: "Trust"
      persistence_strategy: "Any"
      durability: "NoDurability"
      routes: "Any"
      circuit_management_type: "test"
    votes:
      - public_key: "abcd"
        voter_node_id: "alpha"
        vote: "Accept"
    requester: "abcd"
    requester_node_id: "alpha"
`

func TestImport_JoinsMembersAgainstNodeRegistryAndRenamesFiles(t *testing.T) {
	dir := t.TempDir()
	circuitsPath := filepath.Join(dir, "circuits.yaml")
	proposalsPath := filepath.Join(dir, "circuit_proposals.yaml")
	require.NoError(t, os.WriteFile(circuitsPath, []byte(circuitsYAML), 0o644))
	require.NoError(t, os.WriteFile(proposalsPath, []byte(proposalsYAML), 0o644))

	store := mustOpenStore(t)
	result, err := Import(dir, store)
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.Equal(t, 1, result.CircuitsImported)
	require.Equal(t, 1, result.ProposalsImported)

	circuit, err := store.GetCircuit("00011-aaaaa")
	require.NoError(t, err)
	require.Len(t, circuit.Members, 2)
	byNode := make(map[string][]string, len(circuit.Members))
	for _, m := range circuit.Members {
		byNode[m.NodeID] = m.Endpoints
	}
	require.Equal(t, []string{"tcp://127.0.0.1:8000"}, byNode["alpha"])
	require.Equal(t, []string{"tcp://127.0.0.1:8001"}, byNode["beta"])

	proposal, err := store.GetProposal("00022-bbbbb")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", proposal.CircuitHash)
	require.Len(t, proposal.Votes, 1)
	require.Equal(t, "alpha", proposal.Votes[0].VoterNodeID)

	// Both legacy files are renamed out of the way on success.
	require.NoFileExists(t, circuitsPath)
	require.NoFileExists(t, proposalsPath)
	require.FileExists(t, circuitsPath+".old")
	require.FileExists(t, proposalsPath+".old")
}

func TestImport_NoOpWhenFilesAbsent(t *testing.T) {
	dir := t.TempDir()
	store := mustOpenStore(t)

	result, err := Import(dir, store)
	require.NoError(t, err)
	require.True(t, result.NoOp)
	require.Zero(t, result.CircuitsImported)
	require.Zero(t, result.ProposalsImported)
}

func TestImport_MissingNodeEndpointFails(t *testing.T) {
	dir := t.TempDir()
	const missingNodeYAML = `
circuits:
  - id: "00033-ccccc"
    roster:
      - service_id: "sabc3"
        service_type: "scabbard"
        allowed_nodes: ["gamma"]
        arguments: []
    members:
      - node_id: "gamma"
    authorization_type: "Trust"
    persistence_strategy: "Any"
    durability: "NoDurability"
    routes: "Any"
    circuit_management_type: "test"
nodes: []
`
	circuitsPath := filepath.Join(dir, "circuits.yaml")
	require.NoError(t, os.WriteFile(circuitsPath, []byte(missingNodeYAML), 0o644))

	store := mustOpenStore(t)
	_, err := Import(dir, store)
	require.Error(t, err)

	// A failed import must not have renamed the file away.
	require.FileExists(t, circuitsPath)
}
