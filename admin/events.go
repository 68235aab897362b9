package admin

import (
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// EventSubscriberID identifies a registered event subscriber for later
// removal via Unsubscribe.
type EventSubscriberID uint64

// EventSubscriber receives every AdminServiceEvent this Service emits,
// mirroring the fan-out pattern used by peer.Subscriber.
type EventSubscriber chan<- wire.AdminServiceEvent

func (s *Service) emit(kind wire.EventKind, proposal wire.CircuitProposal) {
	event := wire.AdminServiceEvent{Kind: kind, Proposal: proposal}
	stored, err := s.store.AddEvent(event)
	if err != nil {
		s.log.Error("failed to persist admin event", "kind", kind, "circuit", proposal.CircuitID, "err", err)
		stored = event
	}

	s.mu.Lock()
	subs := make([]EventSubscriber, 0, len(s.eventSubs))
	for _, sub := range s.eventSubs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- stored:
		default:
		}
	}
}

// SubscribeEvents registers ch to receive every future AdminServiceEvent.
func (s *Service) SubscribeEvents(ch EventSubscriber) EventSubscriberID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextEventSub
	s.nextEventSub++
	s.eventSubs[id] = ch
	return id
}

// UnsubscribeEvents removes a previously registered subscriber.
func (s *Service) UnsubscribeEvents(id EventSubscriberID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventSubs, id)
}

// ListEventsSince replays persisted events for catch-up, per spec §4.5's
// at-least-once event delivery guarantee.
func (s *Service) ListEventsSince(lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	return s.store.ListEventsSince(lastSeenID, managementType)
}

// GetCircuit is a read-only passthrough to the admin store, exposed so
// connector adapters need not hold a separate store handle.
func (s *Service) GetCircuit(circuitID string) (wire.Circuit, error) {
	return s.store.GetCircuit(circuitID)
}

// ListCircuits is a read-only passthrough to the admin store.
func (s *Service) ListCircuits(managementType string) ([]wire.Circuit, error) {
	return s.store.ListCircuits(adminstore.CircuitFilter{ManagementType: managementType})
}
