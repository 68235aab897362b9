package admin

import "github.com/splinter-rs/splinter-go/wire"

// ManagedService is a running instance of a roster entry on this node, per
// spec §4.5.1's create/start/stop/destroy lifecycle.
type ManagedService interface {
	Start() error
	Stop() error
	Destroy() error
}

// ServiceFactory constructs a ManagedService for a roster entry whose
// service_type this node knows how to run. The node package supplies the
// factory for "scabbard"; other service types are out of scope for this
// module but the seam is kept open the way the teacher keeps its
// orchestrator pluggable by service_type.
type ServiceFactory interface {
	Create(circuit wire.Circuit, svc wire.Service) (ManagedService, error)
	// Supports reports whether this factory can build svc.ServiceType.
	Supports(serviceType string) bool
}

// FactoryRegistry dispatches Create to the first registered factory whose
// Supports matches.
type FactoryRegistry struct {
	factories []ServiceFactory
}

// NewFactoryRegistry builds a registry from factories in priority order.
func NewFactoryRegistry(factories ...ServiceFactory) *FactoryRegistry {
	return &FactoryRegistry{factories: factories}
}

func (r *FactoryRegistry) Create(circuit wire.Circuit, svc wire.Service) (ManagedService, error) {
	for _, f := range r.factories {
		if f.Supports(svc.ServiceType) {
			return f.Create(circuit, svc)
		}
	}
	return nil, ErrUnsupportedServiceType
}
