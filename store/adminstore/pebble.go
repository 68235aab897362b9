package adminstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/wire"
)

// PebbleStore is the alternate admin store backend demonstrating the
// pluggable-backend seam of spec §4.4/§9: same key layout and semantics as
// BadgerStore, committed through pebble's batch API instead of badger's
// transaction API.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (creating if necessary) a PebbleStore rooted at dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("adminstore: opening pebble at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) get(key []byte, out interface{}) error {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return splintererror.New(splintererror.NotFound, "key %s not found", string(key))
	} else if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, out)
}

func (s *PebbleStore) AddProposal(p wire.CircuitProposal) error {
	key := []byte(prefixProposal + p.CircuitID)
	if _, closer, err := s.db.Get(key); err == nil {
		closer.Close()
		return splintererror.New(splintererror.ConstraintViolation, "proposal for circuit %s already exists", p.CircuitID)
	}
	if _, closer, err := s.db.Get([]byte(prefixCircuit + p.CircuitID)); err == nil {
		closer.Close()
		return splintererror.New(splintererror.ConstraintViolation, "circuit %s already committed", p.CircuitID)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Set(key, data, pebble.Sync)
}

func (s *PebbleStore) GetProposal(circuitID string) (wire.CircuitProposal, error) {
	var p wire.CircuitProposal
	err := s.get([]byte(prefixProposal+circuitID), &p)
	return p, err
}

func (s *PebbleStore) ListProposals(filter ProposalFilter) ([]wire.CircuitProposal, error) {
	var out []wire.CircuitProposal
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := []byte(prefixProposal)
	for iter.SeekGE(prefix); iter.Valid() && hasPrefix(iter.Key(), prefix); iter.Next() {
		var p wire.CircuitProposal
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, err
		}
		if filter.ManagementType != "" && p.ProposedCircuit.ManagementType != filter.ManagementType {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out, nil
}

func (s *PebbleStore) RemoveProposal(circuitID string) error {
	return s.db.Delete([]byte(prefixProposal+circuitID), pebble.Sync)
}

func (s *PebbleStore) UpdateProposalVotes(circuitID string, votes []wire.VoteRecord) error {
	var p wire.CircuitProposal
	if err := s.get([]byte(prefixProposal+circuitID), &p); err != nil {
		return err
	}
	p.Votes = votes
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(prefixProposal+circuitID), data, pebble.Sync)
}

func (s *PebbleStore) AddCircuit(c wire.Circuit, members []routing.CircuitNode) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	circData, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := batch.Set([]byte(prefixCircuit+c.CircuitID), circData, nil); err != nil {
		return err
	}
	memData, err := json.Marshal(members)
	if err != nil {
		return err
	}
	if err := batch.Set([]byte(prefixMembers+c.CircuitID), memData, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) GetCircuit(circuitID string) (wire.Circuit, error) {
	var c wire.Circuit
	err := s.get([]byte(prefixCircuit+circuitID), &c)
	return c, err
}

func (s *PebbleStore) ListCircuits(filter CircuitFilter) ([]wire.Circuit, error) {
	var out []wire.Circuit
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := []byte(prefixCircuit)
	for iter.SeekGE(prefix); iter.Valid() && hasPrefix(iter.Key(), prefix); iter.Next() {
		var c wire.Circuit
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return nil, err
		}
		if filter.ManagementType != "" && c.ManagementType != filter.ManagementType {
			continue
		}
		if filter.MemberNodeID != "" {
			found := false
			for _, m := range c.Members {
				if m.NodeID == filter.MemberNodeID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out, nil
}

func (s *PebbleStore) RemoveCircuit(circuitID string) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(prefixCircuit+circuitID), nil); err != nil {
		return err
	}
	if err := batch.Delete([]byte(prefixMembers+circuitID), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) AddEvent(event wire.AdminServiceEvent) (wire.AdminServiceEvent, error) {
	result := event
	if event.ID == 0 {
		id, err := s.nextEventID()
		if err != nil {
			return result, err
		}
		result.ID = id
	} else if _, closer, err := s.db.Get(eventKey(event.ID)); err == nil {
		closer.Close()
		return result, splintererror.New(splintererror.ConstraintViolation, "event %d already exists", event.ID)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return result, err
	}
	return result, s.db.Set(eventKey(result.ID), data, pebble.Sync)
}

func (s *PebbleStore) nextEventID() (int64, error) {
	val, closer, err := s.db.Get([]byte(keyEventSeq))
	var next int64 = 1
	if err == nil {
		next = int64(binary.BigEndian.Uint64(val)) + 1
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := s.db.Set([]byte(keyEventSeq), buf, pebble.Sync); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *PebbleStore) ListEventsSince(lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	var out []wire.AdminServiceEvent
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := []byte(prefixEvent)
	for iter.SeekGE(prefix); iter.Valid() && hasPrefix(iter.Key(), prefix); iter.Next() {
		var e wire.AdminServiceEvent
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		if e.ID <= lastSeenID {
			continue
		}
		if managementType != "" && e.Proposal.ProposedCircuit.ManagementType != managementType {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

var _ Store = (*PebbleStore)(nil)
