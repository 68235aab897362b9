package admin

import "github.com/splinter-rs/splinter-go/wire"

// VotePolicy decides how this node votes on an incoming proposal it did not
// itself submit. The default AcceptAll mirrors the teacher's
// allow-all-by-default admin keys policy: production deployments are
// expected to supply a policy that checks the proposal against local admin
// key permissions.
type VotePolicy interface {
	Decide(proposal wire.CircuitProposal) wire.Vote
}

// AcceptAllPolicy always votes Accept.
type AcceptAllPolicy struct{}

func (AcceptAllPolicy) Decide(wire.CircuitProposal) wire.Vote { return wire.VoteAccept }
