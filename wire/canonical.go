package wire

import (
	"crypto/sha512"
	"encoding/hex"
	"regexp"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// CircuitIDPattern is the required shape of a circuit_id: two five-character
// alphanumeric groups joined by a hyphen.
var CircuitIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{5}-[A-Za-z0-9]{5}$`)

const (
	fieldCircuitID       = 1
	fieldRosterService   = 2
	fieldMember          = 3
	fieldAuthType        = 4
	fieldPersistence     = 5
	fieldDurability      = 6
	fieldRoutes          = 7
	fieldManagementType  = 8
	fieldAppMetadata     = 9
	fieldComments        = 10

	fieldServiceID      = 1
	fieldServiceType    = 2
	fieldAllowedNode    = 3
	fieldArgument       = 4
	fieldArgKey         = 1
	fieldArgValue       = 2

	fieldMemberNodeID   = 1
	fieldMemberEndpoint = 2
)

// sortedCircuit returns a copy of c with Members sorted by NodeID and Roster
// sorted by ServiceID, as required before hashing or persisting (spec §4.5
// step 1, §6 "Canonical hash").
func sortedCircuit(c Circuit) Circuit {
	out := c
	out.Members = append([]Member(nil), c.Members...)
	sort.Slice(out.Members, func(i, j int) bool { return out.Members[i].NodeID < out.Members[j].NodeID })
	out.Roster = append([]Service(nil), c.Roster...)
	sort.Slice(out.Roster, func(i, j int) bool { return out.Roster[i].ServiceID < out.Roster[j].ServiceID })
	return out
}

// CanonicalCircuitBytes deterministically serializes a Circuit: members
// sorted by node_id, roster sorted by service_id, each service's arguments
// kept in insertion order (argument order is semantic), booleans/enums in
// integer form. The result is stable across nodes given the same logical
// circuit, which is what makes CircuitHash comparable across peers.
func CanonicalCircuitBytes(c Circuit) []byte {
	c = sortedCircuit(c)
	var b []byte

	b = protowire.AppendTag(b, fieldCircuitID, protowire.BytesType)
	b = protowire.AppendString(b, c.CircuitID)

	for _, svc := range c.Roster {
		b = protowire.AppendTag(b, fieldRosterService, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeService(svc))
	}

	for _, m := range c.Members {
		b = protowire.AppendTag(b, fieldMember, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMember(m))
	}

	b = protowire.AppendTag(b, fieldAuthType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.AuthorizationType))
	b = protowire.AppendTag(b, fieldPersistence, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Persistence))
	b = protowire.AppendTag(b, fieldDurability, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Durability))
	b = protowire.AppendTag(b, fieldRoutes, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Routes))
	b = protowire.AppendTag(b, fieldManagementType, protowire.BytesType)
	b = protowire.AppendString(b, c.ManagementType)
	b = protowire.AppendTag(b, fieldAppMetadata, protowire.BytesType)
	b = protowire.AppendBytes(b, c.ApplicationMetadata)
	b = protowire.AppendTag(b, fieldComments, protowire.BytesType)
	b = protowire.AppendString(b, c.Comments)

	return b
}

func encodeService(svc Service) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldServiceID, protowire.BytesType)
	b = protowire.AppendString(b, svc.ServiceID)
	b = protowire.AppendTag(b, fieldServiceType, protowire.BytesType)
	b = protowire.AppendString(b, svc.ServiceType)
	for _, n := range svc.AllowedNodes {
		b = protowire.AppendTag(b, fieldAllowedNode, protowire.BytesType)
		b = protowire.AppendString(b, n)
	}
	for _, kv := range svc.Arguments {
		var arg []byte
		arg = protowire.AppendTag(arg, fieldArgKey, protowire.BytesType)
		arg = protowire.AppendString(arg, kv.Key)
		arg = protowire.AppendTag(arg, fieldArgValue, protowire.BytesType)
		arg = protowire.AppendString(arg, kv.Value)
		b = protowire.AppendTag(b, fieldArgument, protowire.BytesType)
		b = protowire.AppendBytes(b, arg)
	}
	return b
}

func encodeMember(m Member) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMemberNodeID, protowire.BytesType)
	b = protowire.AppendString(b, m.NodeID)
	for _, ep := range m.Endpoints {
		b = protowire.AppendTag(b, fieldMemberEndpoint, protowire.BytesType)
		b = protowire.AppendString(b, ep)
	}
	return b
}

// CircuitHash returns the hex-lowercase SHA-512 of the canonical encoding of
// c, as required by spec §3/§6.
func CircuitHash(c Circuit) string {
	sum := sha512.Sum512(CanonicalCircuitBytes(c))
	return hex.EncodeToString(sum[:])
}
