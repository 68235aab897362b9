// Package node assembles one splinter node: the peer manager, mesh
// reactor, routing table, admin service, and the scabbard services it
// locally hosts, wired together the way a production main() would. It
// supplies the admin.ServiceFactory that creates scabbard services (see
// scabbard/service.go).
package node

import (
	"context"
	"net"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/splinter-rs/splinter-go/admin"
	"github.com/splinter-rs/splinter-go/config"
	"github.com/splinter-rs/splinter-go/connector"
	"github.com/splinter-rs/splinter-go/connector/grpcapi"
	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/metrics"
	"github.com/splinter-rs/splinter-go/peer"
	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/supervisor"
)

// Node is one running splinter node: everything required to accept
// connections, participate in the circuit lifecycle protocol, and run the
// scabbard services this node has been assigned.
type Node struct {
	cfg     config.NodeConfig
	log     log.Logger
	metrics *metrics.Metrics

	peers   *peer.Manager
	reactor *mesh.Reactor
	routing *routing.Table

	adminStore adminstore.Store
	adminSvc   *admin.Service

	scabbardStore scabbardstore.Store
	locator       *serviceLocator
	registry      *connector.ScabbardRegistry

	supervisor *supervisor.Supervisor

	AdminClient    *connector.AdminAdapter
	ScabbardClient *connector.ScabbardAdapter

	grpcServer *grpc.Server
}

// New assembles a Node from cfg. It opens the configured storage backend,
// builds the mesh/peer/routing layers, and registers the scabbard service
// factory so committed circuits can start local replicas automatically.
func New(cfg config.NodeConfig, logger log.Logger, reg prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOp()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	adminStore, err := openAdminStore(cfg)
	if err != nil {
		return nil, err
	}
	scabbardStore, err := scabbardstore.OpenBadger(filepath.Join(cfg.DataDir, "scabbard"))
	if err != nil {
		return nil, err
	}

	reactor := mesh.NewReactor(cfg.InboundQueueDepth, logger.With("component", "mesh"))
	backoff := peer.Backoff{Base: cfg.ReconnectBaseDelay, Max: cfg.ReconnectMaxDelay}
	peers := peer.NewManager(reactor, mesh.DialTCP, backoff, nil, logger.With("component", "peer"))
	routingTable := routing.New()

	n := &Node{
		cfg:           cfg,
		log:           logger,
		metrics:       metrics.New(reg),
		peers:         peers,
		reactor:       reactor,
		routing:       routingTable,
		adminStore:    adminStore,
		scabbardStore: scabbardStore,
		locator:       newServiceLocator(),
		registry:      connector.NewScabbardRegistry(),
		supervisor:    supervisor.New(scabbardStore, cfg.TwoPCTimeout, nil, logger.With("component", "supervisor")),
	}

	factory := newScabbardFactory(cfg.NodeID, filepath.Join(cfg.DataDir, "state"), scabbardStore, peers, reactor, n.locator, n.registry, n.supervisor, cfg.TwoPCTimeout, logger.With("component", "scabbard"))
	adminNetwork := admin.NewNetwork(peers, reactor)
	n.adminSvc = admin.NewService(cfg.NodeID, adminStore, routingTable, adminNetwork, factory, nil, logger.With("component", "admin"))

	checker := adminKeyChecker(cfg.AdminKeys)
	n.AdminClient = connector.NewAdminAdapter(n.adminSvc, checker)
	n.ScabbardClient = connector.NewScabbardAdapter(n.registry, checker)

	if cfg.GRPCListenAddr != "" {
		n.grpcServer = grpc.NewServer()
		grpcapi.Register(n.grpcServer, grpcapi.NewServer(n.AdminClient, n.ScabbardClient))
	}

	return n, nil
}

// allPermissions is every fixed permission id of spec §6; a configured
// admin key is granted all of them since NodeConfig.AdminKeys carries only
// a flat trusted-key list, not per-key scopes.
var allPermissions = []connector.Permission{
	connector.PermissionCircuitRead,
	connector.PermissionCircuitWrite,
	connector.PermissionScabbardRead,
	connector.PermissionScabbardWrite,
	connector.PermissionRegistryRead,
	connector.PermissionRegistryWrite,
	connector.PermissionAuthorizationRBACRead,
	connector.PermissionAuthorizationRBACWrite,
	connector.PermissionAuthorizationMaintRead,
	connector.PermissionAuthorizationMaintWrite,
	connector.PermissionAuthorizationPermsRead,
	connector.PermissionBiomeUserRead,
	connector.PermissionBiomeUserWrite,
}

// adminKeyChecker builds a connector.PermissionChecker granting every
// permission to each configured admin key. An empty key list yields a
// checker that grants nothing, so every C9 call is rejected Forbidden
// rather than silently allowed.
func adminKeyChecker(adminKeys []string) connector.PermissionChecker {
	grants := make(map[string][]connector.Permission, len(adminKeys))
	for _, key := range adminKeys {
		grants[key] = allPermissions
	}
	return connector.NewNodeKeys(grants)
}

func openAdminStore(cfg config.NodeConfig) (adminstore.Store, error) {
	dir := filepath.Join(cfg.DataDir, "admin")
	switch cfg.Storage {
	case config.BackendPebble:
		return adminstore.OpenPebble(dir)
	default:
		return adminstore.OpenBadger(dir)
	}
}

// Run starts the reactor's poll loop, the inbound dispatch loop, and the
// supervisor's alarm/notification tick, blocking until ctx is canceled.
func (n *Node) Run(ctx context.Context) {
	go n.reactor.Run()
	go n.run()
	if n.grpcServer != nil {
		go n.runGRPC()
	}
	n.supervisor.Run(ctx)
}

func (n *Node) runGRPC() {
	lis, err := net.Listen("tcp", n.cfg.GRPCListenAddr)
	if err != nil {
		n.log.Error("grpc listen failed", "addr", n.cfg.GRPCListenAddr, "error", err)
		return
	}
	if err := n.grpcServer.Serve(lis); err != nil {
		n.log.Error("grpc server stopped", "error", err)
	}
}

// Shutdown releases the mesh and storage resources this node owns.
func (n *Node) Shutdown() error {
	if n.grpcServer != nil {
		n.grpcServer.GracefulStop()
	}
	n.peers.Shutdown()
	n.reactor.Shutdown()
	if err := n.scabbardStore.Close(); err != nil {
		return err
	}
	return n.adminStore.Close()
}
