package scabbard

import "github.com/splinter-rs/splinter-go/splintererror"

var (
	// ErrUnknownService is returned when a ConsensusMessage or batch names a
	// service_id the locator cannot place on any node.
	ErrUnknownService = splintererror.New(splintererror.NotFound, "scabbard: service has no known node assignment")

	// ErrPeerUnavailable is returned by Network.SendConsensus when no live
	// connection to the target node is currently tracked by the peer
	// manager.
	ErrPeerUnavailable = splintererror.New(splintererror.Transient, "scabbard: no live connection to peer")
)
