package admin

import (
	"encoding/json"

	"github.com/splinter-rs/splinter-go/wire"
)

// AdminMessage's payload is JSON-encoded inside the Envelope: the envelope
// and the circuit hash already get the canonical protowire treatment where
// determinism matters (framing, hashing); the admin protocol payload itself
// has no such requirement, so it follows the same JSON convention the store
// packages use.
func encodeAdminMessage(msg wire.AdminMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic("admin: AdminMessage must always be JSON-encodable: " + err.Error())
	}
	return data
}

func decodeAdminMessage(data []byte) (wire.AdminMessage, error) {
	var msg wire.AdminMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// DecodeMessage is the exported form of decodeAdminMessage, used by node
// assembly to route an inbound MessageAdmin frame before it reaches
// Service.HandleMessage.
func DecodeMessage(data []byte) (wire.AdminMessage, error) {
	return decodeAdminMessage(data)
}
