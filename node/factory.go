package node

import (
	"path/filepath"
	"time"

	"github.com/splinter-rs/splinter-go/admin"
	"github.com/splinter-rs/splinter-go/connector"
	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/peer"
	"github.com/splinter-rs/splinter-go/scabbard"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/supervisor"
	"github.com/splinter-rs/splinter-go/wire"
)

// scabbardFactory is the admin.ServiceFactory that instantiates a
// scabbard.Service for every locally-hosted scabbard roster entry, the
// node-level glue the admin and scabbard packages avoid importing each
// other over (see scabbard/service.go).
type scabbardFactory struct {
	nodeID    string
	stateDir  string
	store     scabbardstore.Store
	peers     *peer.Manager
	reactor   *mesh.Reactor
	locator   *serviceLocator
	registry  *connector.ScabbardRegistry
	super     *supervisor.Supervisor
	alarm     time.Duration
	log       log.Logger
}

func newScabbardFactory(nodeID, stateDir string, store scabbardstore.Store, peers *peer.Manager, reactor *mesh.Reactor, locator *serviceLocator, registry *connector.ScabbardRegistry, super *supervisor.Supervisor, alarm time.Duration, logger log.Logger) *scabbardFactory {
	return &scabbardFactory{
		nodeID:   nodeID,
		stateDir: stateDir,
		store:    store,
		peers:    peers,
		reactor:  reactor,
		locator:  locator,
		registry: registry,
		super:    super,
		alarm:    alarm,
		log:      logger,
	}
}

func (f *scabbardFactory) Supports(serviceType string) bool { return serviceType == "scabbard" }

func (f *scabbardFactory) Create(circuit wire.Circuit, svc wire.Service) (admin.ManagedService, error) {
	if !f.Supports(svc.ServiceType) {
		return nil, splintererror.New(splintererror.InvalidArgument, "scabbard factory: unsupported service_type %q", svc.ServiceType)
	}

	f.locator.AddCircuit(circuit)

	thisKey := replicaKey(svc.ServiceID, f.nodeID)
	var participants []string
	for _, nodeID := range svc.AllowedNodes {
		if nodeID == f.nodeID {
			continue
		}
		participants = append(participants, replicaKey(svc.ServiceID, nodeID))
	}

	tree, err := scabbard.OpenStateTree(filepath.Join(f.stateDir, circuit.CircuitID, svc.ServiceID))
	if err != nil {
		return nil, err
	}

	network := scabbard.NewNetwork(circuit.CircuitID, thisKey, f.locator, f.peers, f.reactor)
	consensus := scabbard.NewConsensus(thisKey, participants, f.store, network, scabbard.StubExecutor{}, tree, f.alarm, f.log)
	instance := scabbard.NewService(circuit.CircuitID, svc.ServiceID, consensus, tree, f.store, f.log)

	f.registry.Register(circuit.CircuitID, svc.ServiceID, instance)
	if f.super != nil {
		f.super.Register(thisKey, consensus)
	}
	return &scabbardManagedService{svc: instance, circuitID: circuit.CircuitID, serviceID: svc.ServiceID, registry: f.registry}, nil
}

// scabbardManagedService adapts scabbard.Service so Destroy also
// unregisters it from the connector registry, keeping the registry in sync
// with admin's circuit lifecycle without scabbard needing to know about
// connector.
type scabbardManagedService struct {
	svc       *scabbard.Service
	circuitID string
	serviceID string
	registry  *connector.ScabbardRegistry
}

func (m *scabbardManagedService) Start() error { return m.svc.Start() }
func (m *scabbardManagedService) Stop() error   { return m.svc.Stop() }
func (m *scabbardManagedService) Destroy() error {
	m.registry.Unregister(m.circuitID, m.serviceID)
	return m.svc.Destroy()
}
