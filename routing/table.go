// Package routing implements the in-memory routing table of spec §4.3
// (component C3): a read-many/write-few index from circuits and services to
// the nodes that host them, split into reader and writer interfaces so
// consumers can hold a reader without blocking writers.
package routing

import (
	"sort"
	"sync"

	"github.com/splinter-rs/splinter-go/wire"
)

// CircuitNode is a node as known to the routing table: its id and the
// endpoints it was last seen advertising.
type CircuitNode struct {
	NodeID    string
	Endpoints []string
}

// ServiceID uniquely names a service within a specific circuit.
type ServiceID struct {
	CircuitID string
	ServiceID string
}

// Reader is the read side of the routing table.
type Reader interface {
	Node(nodeID string) (CircuitNode, bool)
	Nodes() []CircuitNode
	Circuit(circuitID string) (wire.Circuit, bool)
	Circuits() []wire.Circuit
	Service(id ServiceID) (wire.Service, bool)
	ServicesForCircuit(circuitID string) []wire.Service
}

// Writer is the write side of the routing table.
type Writer interface {
	AddCircuit(circuit wire.Circuit, nodes []CircuitNode)
	RemoveCircuit(circuitID string)
}

// ReaderWriter is implemented by Table; most production callers hold one
// of Reader or Writer instead of the concrete type, to make the
// read-many/write-few intent explicit in signatures.
type ReaderWriter interface {
	Reader
	Writer
}

// Table is the concrete, in-memory implementation of spec §4.3. Point
// lookups are map reads; the list methods copy and sort, O(n log n). A
// single RWMutex guards the three maps.
type Table struct {
	mu       sync.RWMutex
	nodes    map[string]CircuitNode
	circuits map[string]wire.Circuit
	services map[ServiceID]wire.Service
}

// New constructs an empty Table.
func New() *Table {
	return &Table{
		nodes:    make(map[string]CircuitNode),
		circuits: make(map[string]wire.Circuit),
		services: make(map[ServiceID]wire.Service),
	}
}

func (t *Table) Node(nodeID string) (CircuitNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[nodeID]
	return n, ok
}

func (t *Table) Nodes() []CircuitNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CircuitNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

func (t *Table) Circuit(circuitID string) (wire.Circuit, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.circuits[circuitID]
	return c, ok
}

func (t *Table) Circuits() []wire.Circuit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]wire.Circuit, 0, len(t.circuits))
	for _, c := range t.circuits {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out
}

func (t *Table) Service(id ServiceID) (wire.Service, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.services[id]
	return s, ok
}

func (t *Table) ServicesForCircuit(circuitID string) []wire.Service {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.circuits[circuitID]
	if !ok {
		return nil
	}
	out := append([]wire.Service(nil), c.Roster...)
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

// AddCircuit registers circuit and its services into the directory. Nodes
// that already exist are left untouched, matching spec §4.3: "existing
// nodes are not overwritten".
func (t *Table) AddCircuit(circuit wire.Circuit, nodes []CircuitNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.circuits[circuit.CircuitID] = circuit
	for _, svc := range circuit.Roster {
		t.services[ServiceID{CircuitID: circuit.CircuitID, ServiceID: svc.ServiceID}] = svc
	}
	for _, n := range nodes {
		if _, exists := t.nodes[n.NodeID]; !exists {
			t.nodes[n.NodeID] = n
		}
	}
}

// RemoveCircuit drops the services owned by circuitID, leaving nodes that
// other circuits still reference.
func (t *Table) RemoveCircuit(circuitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.circuits[circuitID]
	if !ok {
		return
	}
	for _, svc := range c.Roster {
		delete(t.services, ServiceID{CircuitID: circuitID, ServiceID: svc.ServiceID})
	}
	delete(t.circuits, circuitID)
}
