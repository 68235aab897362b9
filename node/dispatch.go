package node

import (
	"encoding/json"
	"strings"

	"github.com/splinter-rs/splinter-go/admin"
	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/scabbard"
	"github.com/splinter-rs/splinter-go/wire"
)

// run drains the reactor's inbound frames and routes each one by its
// Envelope type, the node-level counterpart to admin's and scabbard's
// codecs: those packages only know how to encode/decode their own message
// bodies, never how a frame got routed to them.
func (n *Node) run() {
	for frame := range n.reactor.Inbound() {
		if err := n.dispatch(frame); err != nil {
			n.log.Warn("failed to dispatch inbound frame", "conn", frame.ID, "err", err)
		}
	}
}

func (n *Node) dispatch(frame mesh.InboundFrame) error {
	envelope, err := wire.DecodeEnvelope(frame.Payload)
	if err != nil {
		return err
	}

	if !wire.SupportedVersion(envelope.ProtocolVersion, n.cfg.ProtocolVersionMin, n.cfg.ProtocolVersionMax) {
		n.log.Warn("dropping frame with unsupported protocol version",
			"conn", frame.ID, "version", envelope.ProtocolVersion,
			"min", n.cfg.ProtocolVersionMin, "max", n.cfg.ProtocolVersionMax)
		return nil
	}

	switch envelope.Type {
	case wire.MessageAdmin:
		return n.dispatchAdmin(frame.ID, envelope.Payload)
	case wire.MessageCircuit:
		return n.dispatchCircuit(envelope.Payload)
	default:
		n.log.Debug("ignoring frame with unhandled message type", "type", envelope.Type)
		return nil
	}
}

func (n *Node) dispatchAdmin(connID uint64, payload []byte) error {
	fromNodeID, ok := n.peers.PeerIDForConnection(connID)
	if !ok {
		n.log.Warn("admin frame from unidentified connection", "conn", connID)
		return nil
	}
	msg, err := admin.DecodeMessage(payload)
	if err != nil {
		return err
	}
	return n.adminSvc.HandleMessage(fromNodeID, msg)
}

func (n *Node) dispatchCircuit(payload []byte) error {
	var circuitMsg wire.CircuitMessage
	if err := json.Unmarshal(payload, &circuitMsg); err != nil {
		return err
	}
	// RecipientServiceID is a replicaKey; the registry is keyed by the bare
	// service id.
	serviceID := circuitMsg.RecipientServiceID
	if i := strings.LastIndex(serviceID, "@"); i >= 0 {
		serviceID = serviceID[:i]
	}
	svc, err := n.registry.Lookup(circuitMsg.CircuitID, serviceID)
	if err != nil {
		return err
	}
	scabbardMsg, err := scabbard.DecodeScabbardMessage(circuitMsg.Payload)
	if err != nil {
		return err
	}
	if scabbardMsg.Kind != wire.ScabbardConsensus {
		n.log.Debug("ignoring unrecognized scabbard message kind", "kind", scabbardMsg.Kind)
		return nil
	}
	return svc.HandleConsensusMessage(circuitMsg.SenderServiceID, scabbardMsg.Consensus)
}
