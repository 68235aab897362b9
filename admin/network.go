package admin

import (
	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/peer"
	"github.com/splinter-rs/splinter-go/wire"
)

// Sender delivers an AdminMessage to a specific node's admin service. The
// production implementation (Network) goes through the peer manager and
// reactor; tests substitute a fake that records calls.
type Sender interface {
	SendToNode(nodeID string, msg wire.AdminMessage) error
}

// Network is the default Sender, grounded on the teacher's pattern of
// layering component protocols directly over the peer manager's connection
// ids rather than opening a parallel transport.
type Network struct {
	peers   *peer.Manager
	reactor *mesh.Reactor
}

// NewNetwork builds a Network-backed Sender.
func NewNetwork(peers *peer.Manager, reactor *mesh.Reactor) *Network {
	return &Network{peers: peers, reactor: reactor}
}

func (n *Network) SendToNode(nodeID string, msg wire.AdminMessage) error {
	connIDs := n.peers.ConnectionIDs()
	connID, ok := connIDs[nodeID]
	if !ok {
		return ErrPeerUnavailable
	}
	payload := encodeAdminMessage(msg)
	envelope := wire.Envelope{
		ProtocolVersion: wire.CurrentProtocolVersion,
		Type:            wire.MessageAdmin,
		Payload:         payload,
	}
	return n.reactor.Send(connID, wire.LengthPrefix(envelope.Encode()))
}
