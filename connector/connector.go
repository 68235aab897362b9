// Package connector implements the thin external-facing interfaces of spec
// §4.9 (component C9): the seams a REST, CLI, or gRPC adapter is built
// against, kept free of any transport-specific code so the same interfaces
// serve every adapter.
package connector

import (
	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/wire"
)

// AdminServiceClient is the external surface of the admin package (C5):
// submit proposals/disbands, inspect circuits, and replay the event log.
// Every method takes the caller's identity first so an implementation can
// enforce spec §6's permission-id checks before doing any work.
type AdminServiceClient interface {
	SubmitProposal(identity string, circuit wire.Circuit) (wire.CircuitProposal, error)
	SubmitDisband(identity, circuitID string) (wire.CircuitProposal, error)
	GetCircuit(identity, circuitID string) (wire.Circuit, error)
	ListCircuits(identity, managementType string) ([]wire.Circuit, error)
	ListEventsSince(identity string, lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error)
}

// ScabbardClient is the external surface of one scabbard service instance
// (C6/C7): submit batches and observe their outcome. Every method takes the
// caller's identity first, mirroring AdminServiceClient.
type ScabbardClient interface {
	SubmitBatch(identity, circuitID, serviceID string, batch wire.Batch) error
	GetBatchStatus(identity, circuitID, serviceID, batchID string) (wire.BatchStatus, bool)
	GetStateAt(identity, circuitID, serviceID, root, address string) ([]byte, bool, error)
}

// PeerLookup resolves a node id to its live connection, used by adapters
// that need to prove liveness before accepting a request on its behalf.
type PeerLookup interface {
	PeerIDForConnection(connID uint64) (string, bool)
	ConnectionIDs() map[string]uint64
}

// RoutingTableReader re-exports routing.Reader under the connector package
// so adapters depend on connector's narrower surface rather than importing
// routing directly.
type RoutingTableReader = routing.Reader
