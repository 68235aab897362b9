package admin

import "github.com/splinter-rs/splinter-go/splintererror"

var (
	// ErrPeerUnavailable is returned by Network.SendToNode when no live
	// connection to the target node is currently tracked by the peer
	// manager.
	ErrPeerUnavailable = splintererror.New(splintererror.Transient, "admin: no live connection to peer")

	// ErrUnsupportedServiceType is returned by FactoryRegistry.Create when no
	// registered factory supports the requested service_type.
	ErrUnsupportedServiceType = splintererror.New(splintererror.InvalidArgument, "admin: unsupported service_type")

	// ErrUnknownProposal is returned when a vote or disband message names a
	// circuit_id with no in-flight proposal.
	ErrUnknownProposal = splintererror.New(splintererror.NotFound, "admin: no in-flight proposal for circuit")

	// ErrHashMismatch is returned when a proposal vote's circuit_hash does not
	// match the hash computed locally for the same circuit_id.
	ErrHashMismatch = splintererror.New(splintererror.ConstraintViolation, "admin: circuit_hash does not match local proposal")
)
