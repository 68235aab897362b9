// Package scabbard implements the two-phase-commit replicated service of
// spec §4.6/§4.7 (components C6 and C7): per-circuit consensus over
// submitted batches, and the Merkle-Radix state tree each batch mutates.
package scabbard

import (
	"sync"

	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// Service is one running scabbard instance: a ManagedService (so the admin
// package's ServiceFactory can own its lifecycle) that also exposes batch
// submission and status queries to the connector layer.
type Service struct {
	circuitID string
	serviceID string

	consensus *Consensus
	state     *StateTree
	store     scabbardstore.Store
	log       log.Logger

	mu       sync.Mutex
	statuses map[string]wire.BatchStatus
	receipts map[string][]wire.TransactionReceipt

	events *eventBroker
}

// NewService constructs a scabbard Service. Start/Stop/Destroy satisfy
// admin.ManagedService without importing the admin package; node's
// scabbardFactory, an admin.ServiceFactory, wires this up.
func NewService(circuitID, serviceID string, consensus *Consensus, state *StateTree, store scabbardstore.Store, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Service{
		circuitID: circuitID,
		serviceID: serviceID,
		consensus: consensus,
		state:     state,
		store:     store,
		log:       logger,
		statuses:  make(map[string]wire.BatchStatus),
		receipts:  make(map[string][]wire.TransactionReceipt),
		events:    newEventBroker(),
	}
}

func (s *Service) Start() error {
	s.log.Info("scabbard service starting", "circuit", s.circuitID, "service", s.serviceID)
	return nil
}

func (s *Service) Stop() error {
	s.log.Info("scabbard service stopping", "circuit", s.circuitID, "service", s.serviceID)
	return nil
}

func (s *Service) Destroy() error {
	return s.state.Close()
}

// SubmitBatch accepts a client batch for sequencing. Only the coordinator
// may propose a batch (enforced by Consensus.ProposeBatch); submitting to a
// non-coordinator replica's Service fails rather than forwarding — a caller
// must resolve the coordinator (connector.ScabbardClient has no such
// resolution today) and submit there directly.
func (s *Service) SubmitBatch(batch wire.Batch) error {
	s.mu.Lock()
	s.statuses[batch.BatchID] = wire.BatchStatusPending
	s.mu.Unlock()

	if err := s.consensus.ProposeBatch(batch); err != nil {
		s.mu.Lock()
		s.statuses[batch.BatchID] = wire.BatchStatusInvalid
		s.mu.Unlock()
		return err
	}
	// A circuit with no other participants decides inside ProposeBatch.
	if last, ok, err := s.store.GetLastCommitEntry(s.consensus.thisService); err == nil && ok {
		s.recordDecision(last.Epoch)
	}
	return nil
}

// HandleConsensusMessage forwards an inbound ConsensusMessage to the
// consensus engine and updates the batch status index once a decision
// lands.
func (s *Service) HandleConsensusMessage(fromService string, msg wire.ConsensusMessage) error {
	if err := s.consensus.HandleConsensusMessage(fromService, msg); err != nil {
		return err
	}
	s.recordDecision(msg.Epoch)
	return nil
}

// recordDecision sets the status of the batch in epoch from its commit
// entry, which Consensus keeps under its own service key; an epoch that is
// still pending is left as it is.
func (s *Service) recordDecision(epoch uint64) {
	entries, err := s.store.ListCommitEntries(s.consensus.thisService)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Epoch != epoch {
			continue
		}
		if e.Decision == wire.DecisionPending {
			return
		}
		var batch wire.Batch
		if err := decodeBatch(e.Value, &batch); err != nil {
			return
		}
		status := wire.BatchStatusInvalid
		if e.Decision == wire.DecisionCommit {
			status = wire.BatchStatusCommitted
		}
		s.mu.Lock()
		s.statuses[batch.BatchID] = status
		s.mu.Unlock()
		s.events.publish(wire.StateEvent{BatchID: batch.BatchID})
		return
	}
}

// GetStateAt reads a single address out of the state tree as of root. An
// empty root means the latest committed root for this service.
func (s *Service) GetStateAt(root, address string) ([]byte, bool, error) {
	if root == "" {
		root = s.consensus.CurrentRoot()
	}
	return s.state.Get(root, address)
}

// GetBatchStatus reports the status most recently recorded for batchID.
func (s *Service) GetBatchStatus(batchID string) (wire.BatchStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[batchID]
	return status, ok
}

// WaitForBatch returns a channel that receives batchID's status once it
// leaves BatchStatusPending and is then closed — the Go analogue of the
// teacher's get_batch_info long poll (spec §4.7). It takes no timeout and
// returns no cancel function: the waiting goroutine runs until a decision
// for batchID is recorded.
func (s *Service) WaitForBatch(batchID string) <-chan wire.BatchStatus {
	out := make(chan wire.BatchStatus, 1)
	if status, ok := s.GetBatchStatus(batchID); ok && status != wire.BatchStatusPending {
		out <- status
		close(out)
		return out
	}

	sub, id := s.events.subscribe()
	go func() {
		defer s.events.unsubscribe(id)
		defer close(out)
		for range sub {
			if status, ok := s.GetBatchStatus(batchID); ok && status != wire.BatchStatusPending {
				out <- status
				return
			}
		}
	}()
	return out
}
