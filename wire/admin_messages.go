package wire

// AdminMessageKind discriminates the AdminMessage variants of spec §6.
type AdminMessageKind int32

const (
	AdminProposalRequest AdminMessageKind = iota
	AdminProposalVote
	AdminProposalDisband
	AdminMemberReady
)

// AdminMessage carries one step of the circuit lifecycle protocol between
// admin services. Exactly one of the payload fields is populated, per Kind.
type AdminMessage struct {
	Kind AdminMessageKind

	// ProposalRequest / ProposalDisband
	Proposal CircuitProposal

	// ProposalVote
	CircuitID   string
	CircuitHash string
	Vote        Vote
	VoterNodeID string
	PublicKey   []byte

	// MemberReady
	ReadyCircuitID string
}
