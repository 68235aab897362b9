package connector

import "github.com/splinter-rs/splinter-go/splintererror"

// Permission is one of the fixed permission ids an adapter checks before
// forwarding a request, mirroring the teacher's REST API's static
// permission-string convention rather than a dynamic RBAC model.
type Permission string

const (
	PermissionCircuitRead             Permission = "circuit.read"
	PermissionCircuitWrite            Permission = "circuit.write"
	PermissionScabbardRead            Permission = "scabbard.read"
	PermissionScabbardWrite           Permission = "scabbard.write"
	PermissionRegistryRead            Permission = "registry.read"
	PermissionRegistryWrite           Permission = "registry.write"
	PermissionAuthorizationRBACRead   Permission = "authorization.rbac.read"
	PermissionAuthorizationRBACWrite  Permission = "authorization.rbac.write"
	PermissionAuthorizationMaintRead  Permission = "authorization.maintenance.read"
	PermissionAuthorizationMaintWrite Permission = "authorization.maintenance.write"
	PermissionAuthorizationPermsRead  Permission = "authorization.permissions.read"
	PermissionBiomeUserRead           Permission = "biome.user.read"
	PermissionBiomeUserWrite          Permission = "biome.user.write"
)

// PermissionChecker decides whether an authenticated identity holds a
// permission. NodeKeys is the default implementation, backed by a static
// per-node admin-key-to-permission-set map loaded from config.
type PermissionChecker interface {
	HasPermission(identity string, perm Permission) bool
}

// NodeKeys is a PermissionChecker backed by a fixed map, the Go analogue of
// the teacher's admin_keys configuration: every key in the map is granted
// exactly the permissions listed for it.
type NodeKeys struct {
	grants map[string]map[Permission]bool
}

// NewNodeKeys builds a NodeKeys from identity -> permission list.
func NewNodeKeys(grants map[string][]Permission) *NodeKeys {
	out := make(map[string]map[Permission]bool, len(grants))
	for identity, perms := range grants {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		out[identity] = set
	}
	return &NodeKeys{grants: out}
}

func (k *NodeKeys) HasPermission(identity string, perm Permission) bool {
	set, ok := k.grants[identity]
	return ok && set[perm]
}

// RequirePermission returns a Forbidden error if identity lacks perm.
func RequirePermission(checker PermissionChecker, identity string, perm Permission) error {
	if checker == nil || checker.HasPermission(identity, perm) {
		return nil
	}
	return splintererror.New(splintererror.Forbidden, "identity %q lacks permission %q", identity, perm)
}
