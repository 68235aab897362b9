package connector

import (
	"sync"

	"github.com/splinter-rs/splinter-go/admin"
	"github.com/splinter-rs/splinter-go/scabbard"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/wire"
)

// AdminAdapter wraps an admin.Service to satisfy AdminServiceClient, checking
// the caller's identity against checker before forwarding any call. A nil
// checker (the zero value) imposes no restriction, matching
// RequirePermission's own nil-checker passthrough.
type AdminAdapter struct {
	service *admin.Service
	checker PermissionChecker
}

// NewAdminAdapter wraps service for use behind the AdminServiceClient seam,
// enforcing checker's permission grants on every call.
func NewAdminAdapter(service *admin.Service, checker PermissionChecker) *AdminAdapter {
	return &AdminAdapter{service: service, checker: checker}
}

func (a *AdminAdapter) SubmitProposal(identity string, circuit wire.Circuit) (wire.CircuitProposal, error) {
	if err := RequirePermission(a.checker, identity, PermissionCircuitWrite); err != nil {
		return wire.CircuitProposal{}, err
	}
	return a.service.SubmitProposal(circuit)
}

func (a *AdminAdapter) SubmitDisband(identity, circuitID string) (wire.CircuitProposal, error) {
	if err := RequirePermission(a.checker, identity, PermissionCircuitWrite); err != nil {
		return wire.CircuitProposal{}, err
	}
	return a.service.SubmitDisband(circuitID)
}

func (a *AdminAdapter) GetCircuit(identity, circuitID string) (wire.Circuit, error) {
	if err := RequirePermission(a.checker, identity, PermissionCircuitRead); err != nil {
		return wire.Circuit{}, err
	}
	return a.service.GetCircuit(circuitID)
}

func (a *AdminAdapter) ListCircuits(identity, managementType string) ([]wire.Circuit, error) {
	if err := RequirePermission(a.checker, identity, PermissionCircuitRead); err != nil {
		return nil, err
	}
	return a.service.ListCircuits(managementType)
}

func (a *AdminAdapter) ListEventsSince(identity string, lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	if err := RequirePermission(a.checker, identity, PermissionCircuitRead); err != nil {
		return nil, err
	}
	return a.service.ListEventsSince(lastSeenID, managementType)
}

// ScabbardRegistry looks up the local scabbard.Service running a given
// circuit/service pair. Node assembly (the node package) registers each
// instance as it starts local services; this keeps the connector layer
// ignorant of how those instances were constructed.
type ScabbardRegistry struct {
	mu       sync.RWMutex
	services map[string]map[string]*scabbard.Service
}

// NewScabbardRegistry returns an empty registry.
func NewScabbardRegistry() *ScabbardRegistry {
	return &ScabbardRegistry{services: make(map[string]map[string]*scabbard.Service)}
}

// Register records svc as the running instance for circuitID/serviceID.
func (r *ScabbardRegistry) Register(circuitID, serviceID string, svc *scabbard.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.services[circuitID] == nil {
		r.services[circuitID] = make(map[string]*scabbard.Service)
	}
	r.services[circuitID][serviceID] = svc
}

// Unregister removes a previously registered instance, called when a
// circuit disbands or a local service is destroyed.
func (r *ScabbardRegistry) Unregister(circuitID, serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.services[circuitID]; m != nil {
		delete(m, serviceID)
		if len(m) == 0 {
			delete(r.services, circuitID)
		}
	}
}

// Lookup returns the local scabbard.Service for circuitID/serviceID,
// exported so node assembly can route inbound consensus frames without
// duplicating the registry's locking.
func (r *ScabbardRegistry) Lookup(circuitID, serviceID string) (*scabbard.Service, error) {
	return r.lookup(circuitID, serviceID)
}

func (r *ScabbardRegistry) lookup(circuitID, serviceID string) (*scabbard.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[circuitID][serviceID]
	if !ok {
		return nil, splintererror.New(splintererror.NotFound, "no local scabbard service %s/%s", circuitID, serviceID)
	}
	return svc, nil
}

// ScabbardAdapter wraps a ScabbardRegistry to satisfy ScabbardClient,
// checking the caller's identity against checker before dispatching each
// call to the named circuit/service's running instance.
type ScabbardAdapter struct {
	registry *ScabbardRegistry
	checker  PermissionChecker
}

// NewScabbardAdapter wraps registry for use behind the ScabbardClient seam,
// enforcing checker's permission grants on every call.
func NewScabbardAdapter(registry *ScabbardRegistry, checker PermissionChecker) *ScabbardAdapter {
	return &ScabbardAdapter{registry: registry, checker: checker}
}

func (a *ScabbardAdapter) SubmitBatch(identity, circuitID, serviceID string, batch wire.Batch) error {
	if err := RequirePermission(a.checker, identity, PermissionScabbardWrite); err != nil {
		return err
	}
	svc, err := a.registry.lookup(circuitID, serviceID)
	if err != nil {
		return err
	}
	return svc.SubmitBatch(batch)
}

func (a *ScabbardAdapter) GetBatchStatus(identity, circuitID, serviceID, batchID string) (wire.BatchStatus, bool) {
	if err := RequirePermission(a.checker, identity, PermissionScabbardRead); err != nil {
		return wire.BatchStatusPending, false
	}
	svc, err := a.registry.lookup(circuitID, serviceID)
	if err != nil {
		return wire.BatchStatusPending, false
	}
	return svc.GetBatchStatus(batchID)
}

func (a *ScabbardAdapter) GetStateAt(identity, circuitID, serviceID, root, address string) ([]byte, bool, error) {
	if err := RequirePermission(a.checker, identity, PermissionScabbardRead); err != nil {
		return nil, false, err
	}
	svc, err := a.registry.lookup(circuitID, serviceID)
	if err != nil {
		return nil, false, err
	}
	return svc.GetStateAt(root, address)
}
