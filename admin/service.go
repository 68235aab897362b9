// Package admin implements the circuit lifecycle protocol (spec §4.5,
// component C5): propose, vote, commit, and disband, plus the local
// service instantiation hooks that run once a circuit is ready.
package admin

import (
	"sync"

	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// Service is one node's admin service: it owns the node's view of
// in-flight proposals, committed circuits, and locally running services.
type Service struct {
	nodeID    string
	store     adminstore.Store
	routing   routing.Writer
	sender    Sender
	factories ServiceFactory
	policy    VotePolicy
	log       log.Logger

	mu           sync.Mutex
	running      map[string]map[string]ManagedService // circuitID -> serviceID -> instance
	readyMembers map[string]map[string]bool           // circuitID -> nodeID -> ready

	eventSubs    map[EventSubscriberID]EventSubscriber
	nextEventSub EventSubscriberID
}

// NewService constructs an admin Service. factories and policy may be nil;
// nil factories refuses to start any local service, nil policy defaults to
// AcceptAllPolicy.
func NewService(nodeID string, store adminstore.Store, rw routing.Writer, sender Sender, factories ServiceFactory, policy VotePolicy, logger log.Logger) *Service {
	if policy == nil {
		policy = AcceptAllPolicy{}
	}
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Service{
		nodeID:       nodeID,
		store:        store,
		routing:      rw,
		sender:       sender,
		factories:    factories,
		policy:       policy,
		log:          logger,
		running:      make(map[string]map[string]ManagedService),
		readyMembers: make(map[string]map[string]bool),
		eventSubs:    make(map[EventSubscriberID]EventSubscriber),
	}
}

func (s *Service) isMember(c wire.Circuit) bool {
	for _, m := range c.Members {
		if m.NodeID == s.nodeID {
			return true
		}
	}
	return false
}

// SubmitProposal begins the create-circuit protocol: it validates circuit,
// computes its canonical hash, records this node's own Accept vote, persists
// the proposal, and broadcasts an AdminProposalRequest to every other
// member.
func (s *Service) SubmitProposal(circuit wire.Circuit) (wire.CircuitProposal, error) {
	return s.propose(wire.ProposalCreate, circuit)
}

// SubmitDisband begins the disband protocol for an already-committed
// circuit.
func (s *Service) SubmitDisband(circuitID string) (wire.CircuitProposal, error) {
	circuit, err := s.store.GetCircuit(circuitID)
	if err != nil {
		return wire.CircuitProposal{}, err
	}
	return s.propose(wire.ProposalDisband, circuit)
}

func (s *Service) propose(ptype wire.ProposalType, circuit wire.Circuit) (wire.CircuitProposal, error) {
	if err := wire.ValidateCircuit(circuit); err != nil {
		return wire.CircuitProposal{}, err
	}
	if !s.isMember(circuit) {
		return wire.CircuitProposal{}, splintererror.New(splintererror.InvalidArgument, "admin: this node is not a member of circuit %s", circuit.CircuitID)
	}

	hash := wire.CircuitHash(circuit)
	proposal := wire.CircuitProposal{
		ProposalType:       ptype,
		CircuitID:          circuit.CircuitID,
		CircuitHash:        hash,
		ProposedCircuit:    circuit,
		RequesterNodeID:    s.nodeID,
		Votes: []wire.VoteRecord{
			{VoterNodeID: s.nodeID, Vote: wire.VoteAccept},
		},
	}

	if err := s.store.AddProposal(proposal); err != nil {
		return wire.CircuitProposal{}, err
	}
	s.emit(wire.EventProposalSubmitted, proposal)

	for _, m := range circuit.Members {
		if m.NodeID == s.nodeID {
			continue
		}
		msgKind := wire.AdminProposalRequest
		if ptype == wire.ProposalDisband {
			msgKind = wire.AdminProposalDisband
		}
		if err := s.sender.SendToNode(m.NodeID, wire.AdminMessage{Kind: msgKind, Proposal: proposal}); err != nil {
			s.log.Warn("failed to send proposal to member", "circuit", circuit.CircuitID, "member", m.NodeID, "err", err)
		}
	}

	// A single-member circuit has no other votes to wait for: the
	// requester's own Accept already decides the proposal.
	if len(proposal.Votes) >= len(circuit.Members) {
		if err := s.finalize(proposal); err != nil {
			return wire.CircuitProposal{}, err
		}
	}
	return proposal, nil
}

// HandleMessage dispatches an inbound AdminMessage received from fromNodeID.
func (s *Service) HandleMessage(fromNodeID string, msg wire.AdminMessage) error {
	switch msg.Kind {
	case wire.AdminProposalRequest:
		return s.handleProposalMessage(fromNodeID, msg.Proposal)
	case wire.AdminProposalDisband:
		return s.handleProposalMessage(fromNodeID, msg.Proposal)
	case wire.AdminProposalVote:
		return s.handleVote(fromNodeID, msg)
	case wire.AdminMemberReady:
		return s.handleMemberReady(fromNodeID, msg.ReadyCircuitID)
	default:
		return splintererror.New(splintererror.InvalidArgument, "admin: unknown AdminMessageKind %d", msg.Kind)
	}
}

// handleProposalMessage handles both the initial proposal broadcast (first
// time we see this circuit_id) and the finalized broadcast the requester
// sends once every member has voted (same Kind, Votes now complete).
func (s *Service) handleProposalMessage(fromNodeID string, proposal wire.CircuitProposal) error {
	expectedHash := wire.CircuitHash(proposal.ProposedCircuit)
	if expectedHash != proposal.CircuitHash {
		return ErrHashMismatch
	}

	existing, err := s.store.GetProposal(proposal.CircuitID)
	haveExisting := err == nil

	full := len(proposal.Votes) >= len(proposal.ProposedCircuit.Members)

	if !haveExisting {
		if addErr := s.store.AddProposal(proposal); addErr != nil {
			return addErr
		}
		s.emit(wire.EventProposalSubmitted, proposal)

		if full {
			return s.finalize(proposal)
		}

		vote := s.policy.Decide(proposal)
		if uerr := s.store.UpdateProposalVotes(proposal.CircuitID, appendVote(proposal.Votes, s.nodeID, vote)); uerr != nil {
			return uerr
		}
		s.emit(wire.EventProposalVote, proposal)
		kind := wire.AdminProposalVote
		return s.sender.SendToNode(proposal.RequesterNodeID, wire.AdminMessage{
			Kind:        kind,
			CircuitID:   proposal.CircuitID,
			CircuitHash: proposal.CircuitHash,
			Vote:        vote,
			VoterNodeID: s.nodeID,
		})
	}

	// We already track this circuit_id; an update with a fuller vote set
	// means this is the requester's finalized broadcast.
	if full {
		_ = existing
		return s.finalize(proposal)
	}
	return nil
}

func appendVote(votes []wire.VoteRecord, nodeID string, vote wire.Vote) []wire.VoteRecord {
	out := make([]wire.VoteRecord, 0, len(votes)+1)
	for _, v := range votes {
		if v.VoterNodeID == nodeID {
			continue
		}
		out = append(out, v)
	}
	out = append(out, wire.VoteRecord{VoterNodeID: nodeID, Vote: vote})
	return out
}

func allAccepted(votes []wire.VoteRecord) bool {
	for _, v := range votes {
		if v.Vote != wire.VoteAccept {
			return false
		}
	}
	return true
}

// finalize applies the terminal decision of a fully-voted proposal: commit
// on unanimous accept, discard on any reject.
func (s *Service) finalize(proposal wire.CircuitProposal) error {
	if !allAccepted(proposal.Votes) {
		_ = s.store.RemoveProposal(proposal.CircuitID)
		s.emit(wire.EventProposalRejected, proposal)
		return nil
	}

	switch proposal.ProposalType {
	case wire.ProposalDisband:
		return s.applyDisband(proposal)
	default:
		return s.applyCommit(proposal)
	}
}

func (s *Service) applyCommit(proposal wire.CircuitProposal) error {
	circuit := proposal.ProposedCircuit
	members := make([]routing.CircuitNode, 0, len(circuit.Members))
	for _, m := range circuit.Members {
		members = append(members, routing.CircuitNode{NodeID: m.NodeID, Endpoints: m.Endpoints})
	}

	if err := s.store.AddCircuit(circuit, members); err != nil {
		return err
	}
	_ = s.store.RemoveProposal(proposal.CircuitID)
	s.routing.AddCircuit(circuit, members)
	s.emit(wire.EventCircuitReady, proposal)

	s.startLocalServices(circuit)

	if proposal.RequesterNodeID == s.nodeID {
		for _, m := range circuit.Members {
			if m.NodeID == s.nodeID {
				continue
			}
			if err := s.sender.SendToNode(m.NodeID, wire.AdminMessage{Kind: wire.AdminProposalRequest, Proposal: proposal}); err != nil {
				s.log.Warn("failed to broadcast finalized proposal", "circuit", circuit.CircuitID, "member", m.NodeID, "err", err)
			}
		}
	}

	for _, m := range circuit.Members {
		if m.NodeID == s.nodeID {
			continue
		}
		if err := s.sender.SendToNode(m.NodeID, wire.AdminMessage{Kind: wire.AdminMemberReady, ReadyCircuitID: circuit.CircuitID}); err != nil {
			s.log.Warn("failed to send member-ready", "circuit", circuit.CircuitID, "member", m.NodeID, "err", err)
		}
	}
	return nil
}

func (s *Service) applyDisband(proposal wire.CircuitProposal) error {
	circuit := proposal.ProposedCircuit
	s.stopLocalServices(circuit.CircuitID)

	if err := s.store.RemoveCircuit(circuit.CircuitID); err != nil {
		return err
	}
	_ = s.store.RemoveProposal(proposal.CircuitID)
	s.routing.RemoveCircuit(circuit.CircuitID)
	s.emit(wire.EventCircuitDisbanded, proposal)

	if proposal.RequesterNodeID == s.nodeID {
		for _, m := range circuit.Members {
			if m.NodeID == s.nodeID {
				continue
			}
			if err := s.sender.SendToNode(m.NodeID, wire.AdminMessage{Kind: wire.AdminProposalDisband, Proposal: proposal}); err != nil {
				s.log.Warn("failed to broadcast finalized disband", "circuit", circuit.CircuitID, "member", m.NodeID, "err", err)
			}
		}
	}
	return nil
}

func (s *Service) handleVote(fromNodeID string, msg wire.AdminMessage) error {
	proposal, err := s.store.GetProposal(msg.CircuitID)
	if err != nil {
		return ErrUnknownProposal
	}
	if proposal.CircuitHash != msg.CircuitHash {
		return ErrHashMismatch
	}

	votes := appendVote(proposal.Votes, msg.VoterNodeID, msg.Vote)
	if err := s.store.UpdateProposalVotes(msg.CircuitID, votes); err != nil {
		return err
	}
	proposal.Votes = votes
	s.emit(wire.EventProposalVote, proposal)

	if len(votes) < len(proposal.ProposedCircuit.Members) {
		return nil
	}
	return s.finalize(proposal)
}

func (s *Service) handleMemberReady(fromNodeID, circuitID string) error {
	s.mu.Lock()
	ready, ok := s.readyMembers[circuitID]
	if !ok {
		ready = make(map[string]bool)
		s.readyMembers[circuitID] = ready
	}
	ready[fromNodeID] = true
	s.mu.Unlock()
	s.log.Debug("member ready", "circuit", circuitID, "member", fromNodeID)
	return nil
}

func (s *Service) startLocalServices(circuit wire.Circuit) {
	if s.factories == nil {
		return
	}
	for _, svc := range circuit.Roster {
		if !contains(svc.AllowedNodes, s.nodeID) {
			continue
		}
		instance, err := s.factories.Create(circuit, svc)
		if err != nil {
			s.log.Error("failed to create local service", "circuit", circuit.CircuitID, "service", svc.ServiceID, "err", err)
			continue
		}
		if err := instance.Start(); err != nil {
			s.log.Error("failed to start local service", "circuit", circuit.CircuitID, "service", svc.ServiceID, "err", err)
			continue
		}
		s.mu.Lock()
		if s.running[circuit.CircuitID] == nil {
			s.running[circuit.CircuitID] = make(map[string]ManagedService)
		}
		s.running[circuit.CircuitID][svc.ServiceID] = instance
		s.mu.Unlock()
	}
}

func (s *Service) stopLocalServices(circuitID string) {
	s.mu.Lock()
	instances := s.running[circuitID]
	delete(s.running, circuitID)
	s.mu.Unlock()

	for serviceID, instance := range instances {
		if err := instance.Stop(); err != nil {
			s.log.Warn("failed to stop local service", "circuit", circuitID, "service", serviceID, "err", err)
		}
		if err := instance.Destroy(); err != nil {
			s.log.Warn("failed to destroy local service", "circuit", circuitID, "service", serviceID, "err", err)
		}
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
