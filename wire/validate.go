package wire

import (
	"fmt"

	"github.com/splinter-rs/splinter-go/splintererror"
)

var validAuth = map[AuthorizationType]bool{AuthorizationTrust: true}
var validPersistence = map[PersistenceType]bool{PersistenceAny: true}
var validDurability = map[DurabilityType]bool{DurabilityNoDurability: true}
var validRoutes = map[RouteType]bool{RouteAny: true}

// ValidateCircuit enforces the structural invariants of spec §4.5 step 1:
// circuit_id shape, non-empty rosters/allowed_nodes, allowed_nodes being a
// subset of members, every member having at least one endpoint, and the
// fixed enum values.
func ValidateCircuit(c Circuit) error {
	if !CircuitIDPattern.MatchString(c.CircuitID) {
		return splintererror.New(splintererror.InvalidArgument, "circuit_id %q does not match ^[A-Za-z0-9]{5}-[A-Za-z0-9]{5}$", c.CircuitID)
	}
	if len(c.Members) == 0 {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: members must be non-empty", c.CircuitID)
	}
	members := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if m.NodeID == "" {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: member with empty node_id", c.CircuitID)
		}
		if len(m.Endpoints) == 0 {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: member %s has no endpoints", c.CircuitID, m.NodeID)
		}
		members[m.NodeID] = true
	}
	if len(c.Roster) == 0 {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: roster must be non-empty", c.CircuitID)
	}
	seenServiceIDs := make(map[string]bool, len(c.Roster))
	for _, svc := range c.Roster {
		if svc.ServiceID == "" {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: service with empty service_id", c.CircuitID)
		}
		if seenServiceIDs[svc.ServiceID] {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: duplicate service_id %s", c.CircuitID, svc.ServiceID)
		}
		seenServiceIDs[svc.ServiceID] = true
		if svc.ServiceType == "" {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: service %s has empty service_type", c.CircuitID, svc.ServiceID)
		}
		if len(svc.AllowedNodes) == 0 {
			return splintererror.New(splintererror.InvalidArgument, "circuit %s: service %s has empty allowed_nodes", c.CircuitID, svc.ServiceID)
		}
		for _, n := range svc.AllowedNodes {
			if !members[n] {
				return splintererror.New(splintererror.InvalidArgument, "circuit %s: service %s allowed_node %s is not a member", c.CircuitID, svc.ServiceID, n)
			}
		}
	}
	if !validAuth[c.AuthorizationType] {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: unsupported authorization_type %s", c.CircuitID, c.AuthorizationType)
	}
	if !validPersistence[c.Persistence] {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: unsupported persistence %s", c.CircuitID, c.Persistence)
	}
	if !validDurability[c.Durability] {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: unsupported durability %s", c.CircuitID, c.Durability)
	}
	if !validRoutes[c.Routes] {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: unsupported routes %s", c.CircuitID, c.Routes)
	}
	if c.ManagementType == "" {
		return splintererror.New(splintererror.InvalidArgument, "circuit %s: management_type must be non-empty", c.CircuitID)
	}
	return nil
}

// ValidateServiceIDWithin reports whether serviceID is present in roster.
func ValidateServiceIDWithin(c Circuit, serviceID string) error {
	for _, s := range c.Roster {
		if s.ServiceID == serviceID {
			return nil
		}
	}
	return fmt.Errorf("service %s not found in circuit %s", serviceID, c.CircuitID)
}
