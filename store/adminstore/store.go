// Package adminstore implements the admin store of spec §4.4 (component
// C4): persisted proposals, circuits, vote records, and admin events,
// behind a pluggable backend (badger or pebble), following the teacher's
// pattern of one interface with swappable KV engines rather than a deep
// backend hierarchy.
package adminstore

import (
	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/wire"
)

// ProposalFilter narrows ListProposals; a zero value matches everything.
type ProposalFilter struct {
	ManagementType string
}

// CircuitFilter narrows ListCircuits; a zero value matches everything.
type CircuitFilter struct {
	ManagementType string
	MemberNodeID   string
}

// Store is the admin store's full read/write surface. All writes are
// transactional; all list/fetch APIs return deterministic orderings
// (sorted by id), per spec §4.4.
type Store interface {
	// AddProposal rejects if a proposal for the same circuit_id already
	// exists.
	AddProposal(p wire.CircuitProposal) error
	GetProposal(circuitID string) (wire.CircuitProposal, error)
	ListProposals(filter ProposalFilter) ([]wire.CircuitProposal, error)
	RemoveProposal(circuitID string) error
	UpdateProposalVotes(circuitID string, votes []wire.VoteRecord) error

	// AddCircuit atomically inserts the circuit plus its members snapshot.
	AddCircuit(c wire.Circuit, members []routing.CircuitNode) error
	GetCircuit(circuitID string) (wire.Circuit, error)
	ListCircuits(filter CircuitFilter) ([]wire.Circuit, error)
	RemoveCircuit(circuitID string) error

	// AddEvent appends to an auto-id'd log; if a row already exists for
	// event.ID (event.ID != 0), it returns a ConstraintViolation error
	// (used to detect double-apply).
	AddEvent(event wire.AdminServiceEvent) (wire.AdminServiceEvent, error)
	ListEventsSince(lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error)

	Close() error
}
