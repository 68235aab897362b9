// Package wire holds the data model and on-the-wire encoding shared by every
// component: circuits, proposals, votes, batches, and the framed messages
// exchanged over Mesh connections. Framing is length-delimited using
// google.golang.org/protobuf's low-level protowire helpers (tag/varint
// encoding) rather than code generated from .proto files, since this
// environment cannot invoke protoc; see DESIGN.md.
package wire

// ProposalType distinguishes circuit creation from disbanding.
type ProposalType int32

const (
	ProposalCreate ProposalType = iota
	ProposalDisband
)

func (p ProposalType) String() string {
	if p == ProposalDisband {
		return "Disband"
	}
	return "Create"
}

// Vote is a member's accept/reject decision on a proposal.
type Vote int32

const (
	VoteAccept Vote = iota
	VoteReject
)

func (v Vote) String() string {
	if v == VoteReject {
		return "Reject"
	}
	return "Accept"
}

// KV is an ordered (key, value) pair; order is semantic for service
// arguments and is part of the canonical hash.
type KV struct {
	Key   string
	Value string
}

// Service is a single roster entry inside a Circuit.
type Service struct {
	ServiceID    string
	ServiceType  string
	AllowedNodes []string
	Arguments    []KV
}

// Member is a circuit participant with its endpoints snapshotted at the
// time the circuit was committed.
type Member struct {
	NodeID    string
	Endpoints []string
}

// AuthorizationType selects how services within a circuit authorize peer
// connections. Only Trust is implemented today.
type AuthorizationType int32

const (
	AuthorizationTrust AuthorizationType = iota
)

func (a AuthorizationType) String() string {
	if a == AuthorizationTrust {
		return "Trust"
	}
	return "Unknown"
}

// PersistenceType selects how long a circuit's state survives past its
// member services stopping. Only Any (persist indefinitely) is implemented
// today.
type PersistenceType int32

const (
	PersistenceAny PersistenceType = iota
)

func (p PersistenceType) String() string {
	if p == PersistenceAny {
		return "Any"
	}
	return "Unknown"
}

// DurabilityType selects the write-durability guarantee a circuit's
// services request from their store. Only NoDurability is implemented
// today.
type DurabilityType int32

const (
	DurabilityNoDurability DurabilityType = iota
)

func (d DurabilityType) String() string {
	if d == DurabilityNoDurability {
		return "NoDurability"
	}
	return "Unknown"
}

// RouteType selects how messages are routed between circuit members. Only
// Any (any available connection) is implemented today.
type RouteType int32

const (
	RouteAny RouteType = iota
)

func (r RouteType) String() string {
	if r == RouteAny {
		return "Any"
	}
	return "Unknown"
}

// Circuit is immutable once committed. See spec §3.
type Circuit struct {
	CircuitID           string
	Roster              []Service
	Members             []Member
	AuthorizationType   AuthorizationType
	Persistence         PersistenceType
	Durability          DurabilityType
	Routes              RouteType
	ManagementType      string
	ApplicationMetadata []byte
	Comments            string
}

// VoteRecord is one member's recorded vote on a proposal.
type VoteRecord struct {
	PublicKey   []byte
	Vote        Vote
	VoterNodeID string
}

// CircuitProposal is the in-flight artifact of the admin lifecycle protocol.
type CircuitProposal struct {
	ProposalType        ProposalType
	CircuitID           string
	CircuitHash         string
	ProposedCircuit     Circuit
	Votes               []VoteRecord
	RequesterPublicKey  []byte
	RequesterNodeID     string
}

// EventKind enumerates the kinds of AdminServiceEvent.
type EventKind int32

const (
	EventProposalSubmitted EventKind = iota
	EventProposalVote
	EventProposalAccepted
	EventProposalRejected
	EventCircuitReady
	EventCircuitDisbanded
)

func (k EventKind) String() string {
	switch k {
	case EventProposalSubmitted:
		return "ProposalSubmitted"
	case EventProposalVote:
		return "ProposalVote"
	case EventProposalAccepted:
		return "ProposalAccepted"
	case EventProposalRejected:
		return "ProposalRejected"
	case EventCircuitReady:
		return "CircuitReady"
	case EventCircuitDisbanded:
		return "CircuitDisbanded"
	default:
		return "Unknown"
	}
}

// AdminServiceEvent is a single entry in a node's admin event log.
type AdminServiceEvent struct {
	ID       int64
	Kind     EventKind
	Proposal CircuitProposal
}

// Transaction is a single signed operation inside a Batch.
type Transaction struct {
	FamilyName    string
	FamilyVersion string
	Inputs        []string
	Outputs       []string
	Dependencies  []string
	Nonce         []byte
	Payload       []byte
	SignerPublic  []byte
}

// Batch is the client-submitted unit of work for a scabbard service.
type Batch struct {
	BatchID      string
	Transactions []Transaction
	SignerPublic []byte
}

// Decision is the terminal outcome of a 2PC epoch.
type Decision int32

const (
	DecisionPending Decision = iota
	DecisionCommit
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionCommit:
		return "Commit"
	case DecisionAbort:
		return "Abort"
	default:
		return "Pending"
	}
}

// CommitEntry records one epoch's agreed value and its terminal decision.
type CommitEntry struct {
	Epoch     uint64
	Value     []byte
	Decision  Decision
	DecidedAt int64 // unix seconds, 0 if not yet decided
}

// BatchStatus is the externally visible lifecycle of a submitted batch.
type BatchStatus int32

const (
	BatchStatusPending BatchStatus = iota
	BatchStatusValid
	BatchStatusInvalid
	BatchStatusCommitted
)

func (s BatchStatus) String() string {
	switch s {
	case BatchStatusValid:
		return "Valid"
	case BatchStatusInvalid:
		return "Invalid"
	case BatchStatusCommitted:
		return "Committed"
	default:
		return "Pending"
	}
}

// TransactionReceipt records the effect of executing one transaction.
type TransactionReceipt struct {
	BatchID      string
	TxnID        string
	Status       BatchStatus
	StateChanges []StateChange
	Events       []StateEvent
	Data         []byte
}

// StateChangeType is the kind of mutation applied to the Merkle state tree.
type StateChangeType int32

const (
	StateSet StateChangeType = iota
	StateDelete
)

// StateChange is a single mutation to the Merkle-Radix state tree.
type StateChange struct {
	Type  StateChangeType
	Key   string // 70-hex address
	Value []byte // nil for StateDelete
}

// StateEvent is a published side effect of applying a StateChange, keyed by
// a monotonic id so SSE-style subscribers can resume after a disconnect.
type StateEvent struct {
	ID      uint64
	BatchID string
	Change  StateChange
}
