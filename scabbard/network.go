package scabbard

import (
	"encoding/json"

	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/peer"
	"github.com/splinter-rs/splinter-go/wire"
)

// ServiceLocator resolves which node currently runs a given service within
// a circuit, so a ConsensusMessage addressed to a serviceID can be routed
// to the right connection. Node assembly supplies the concrete mapping
// (built from the circuit roster's allowed-nodes lists).
type ServiceLocator interface {
	NodeForService(serviceID string) (string, bool)
}

// Network is the default ConsensusSender: it wraps a ConsensusMessage in a
// CircuitMessage and sends it over the same mesh connections the admin
// package uses, rather than opening a parallel transport, mirroring the
// teacher's single-connection-per-peer design.
type Network struct {
	circuitID string
	thisSvc   string
	locator   ServiceLocator
	peers     *peer.Manager
	reactor   *mesh.Reactor
}

// NewNetwork builds a Network-backed ConsensusSender for one circuit.
func NewNetwork(circuitID, thisServiceID string, locator ServiceLocator, peers *peer.Manager, reactor *mesh.Reactor) *Network {
	return &Network{circuitID: circuitID, thisSvc: thisServiceID, locator: locator, peers: peers, reactor: reactor}
}

func (n *Network) SendConsensus(serviceID string, msg wire.ConsensusMessage) error {
	nodeID, ok := n.locator.NodeForService(serviceID)
	if !ok {
		return ErrUnknownService
	}
	connID, ok := n.peers.ConnectionIDs()[nodeID]
	if !ok {
		return ErrPeerUnavailable
	}

	payload, err := json.Marshal(wire.ScabbardMessage{Kind: wire.ScabbardConsensus, Consensus: msg})
	if err != nil {
		return err
	}
	circuitMsg := wire.CircuitMessage{
		CircuitID:          n.circuitID,
		SenderServiceID:    n.thisSvc,
		RecipientServiceID: serviceID,
		Payload:            payload,
	}
	body, err := json.Marshal(circuitMsg)
	if err != nil {
		return err
	}
	envelope := wire.Envelope{
		ProtocolVersion: wire.CurrentProtocolVersion,
		Type:            wire.MessageCircuit,
		Payload:         body,
	}
	return n.reactor.Send(connID, wire.LengthPrefix(envelope.Encode()))
}

// DecodeScabbardMessage parses the JSON payload carried inside a
// CircuitMessage addressed to a scabbard service.
func DecodeScabbardMessage(data []byte) (wire.ScabbardMessage, error) {
	var msg wire.ScabbardMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
