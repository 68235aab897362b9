package node

import (
	"sync"

	"github.com/splinter-rs/splinter-go/wire"
)

// replicaKey identifies one node's local replica of a roster service: a
// scabbard roster entry may list several allowed_nodes, and each hosts its
// own independent instance of that service_id, so 2PC participants need a
// (service_id, node_id) pair rather than the bare service_id to tell those
// replicas apart. The key does not include the circuit id.
func replicaKey(serviceID, nodeID string) string {
	return serviceID + "@" + nodeID
}

// serviceLocator resolves a replicaKey back to the node that hosts it, so
// scabbard.Network can route a ConsensusMessage over the right connection.
type serviceLocator struct {
	mu   sync.RWMutex
	byID map[string]string // replicaKey -> nodeID
}

func newServiceLocator() *serviceLocator {
	return &serviceLocator{byID: make(map[string]string)}
}

// AddCircuit records every (service, node) replica pair in circuit's
// scabbard roster.
func (l *serviceLocator) AddCircuit(circuit wire.Circuit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, svc := range circuit.Roster {
		if svc.ServiceType != "scabbard" {
			continue
		}
		for _, nodeID := range svc.AllowedNodes {
			l.byID[replicaKey(svc.ServiceID, nodeID)] = nodeID
		}
	}
}

// RemoveCircuit forgets circuit's replica pairs. Nothing in this module
// calls it; entries added by AddCircuit stay after a disband.
func (l *serviceLocator) RemoveCircuit(circuit wire.Circuit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, svc := range circuit.Roster {
		for _, nodeID := range svc.AllowedNodes {
			delete(l.byID, replicaKey(svc.ServiceID, nodeID))
		}
	}
}

func (l *serviceLocator) NodeForService(replicaID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	nodeID, ok := l.byID[replicaID]
	return nodeID, ok
}
