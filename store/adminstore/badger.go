package adminstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/wire"
)

const (
	prefixProposal = "admin/proposal/"
	prefixCircuit  = "admin/circuit/"
	prefixMembers  = "admin/members/"
	prefixEvent    = "admin/event/"
	keyEventSeq    = "admin/event_seq"
)

// BadgerStore is the default admin store backend, an embedded
// transactional KV database standing in for the teacher's SQL-backed
// store: §4.4's "transactional writes" map onto badger.Txn, and its
// "deterministic orderings" onto sorted-key iteration.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (creating if necessary) a BadgerStore rooted at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("adminstore: opening badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) AddProposal(p wire.CircuitProposal) error {
	key := []byte(prefixProposal + p.CircuitID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return splintererror.New(splintererror.ConstraintViolation, "proposal for circuit %s already exists", p.CircuitID)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if _, err := txn.Get([]byte(prefixCircuit + p.CircuitID)); err == nil {
			return splintererror.New(splintererror.ConstraintViolation, "circuit %s already committed", p.CircuitID)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) GetProposal(circuitID string) (wire.CircuitProposal, error) {
	var p wire.CircuitProposal
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixProposal + circuitID))
		if err == badger.ErrKeyNotFound {
			return splintererror.New(splintererror.NotFound, "no proposal for circuit %s", circuitID)
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	return p, err
}

func (s *BadgerStore) ListProposals(filter ProposalFilter) ([]wire.CircuitProposal, error) {
	var out []wire.CircuitProposal
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixProposal)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p wire.CircuitProposal
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			if filter.ManagementType != "" && p.ProposedCircuit.ManagementType != filter.ManagementType {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out, err
}

func (s *BadgerStore) RemoveProposal(circuitID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixProposal + circuitID))
	})
}

func (s *BadgerStore) UpdateProposalVotes(circuitID string, votes []wire.VoteRecord) error {
	key := []byte(prefixProposal + circuitID)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return splintererror.New(splintererror.NotFound, "no proposal for circuit %s", circuitID)
		} else if err != nil {
			return err
		}
		var p wire.CircuitProposal
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
			return err
		}
		p.Votes = votes
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) AddCircuit(c wire.Circuit, members []routing.CircuitNode) error {
	return s.db.Update(func(txn *badger.Txn) error {
		circData, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixCircuit+c.CircuitID), circData); err != nil {
			return err
		}
		memData, err := json.Marshal(members)
		if err != nil {
			return err
		}
		return txn.Set([]byte(prefixMembers+c.CircuitID), memData)
	})
}

func (s *BadgerStore) GetCircuit(circuitID string) (wire.Circuit, error) {
	var c wire.Circuit
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCircuit + circuitID))
		if err == badger.ErrKeyNotFound {
			return splintererror.New(splintererror.NotFound, "no circuit %s", circuitID)
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &c) })
	})
	return c, err
}

func (s *BadgerStore) ListCircuits(filter CircuitFilter) ([]wire.Circuit, error) {
	var out []wire.Circuit
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixCircuit)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c wire.Circuit
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return err
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
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out, err
}

func (s *BadgerStore) RemoveCircuit(circuitID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixCircuit + circuitID)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixMembers + circuitID))
	})
}

func (s *BadgerStore) AddEvent(event wire.AdminServiceEvent) (wire.AdminServiceEvent, error) {
	var result wire.AdminServiceEvent
	err := s.db.Update(func(txn *badger.Txn) error {
		if event.ID != 0 {
			key := eventKey(event.ID)
			if _, err := txn.Get(key); err == nil {
				return splintererror.New(splintererror.ConstraintViolation, "event %d already exists", event.ID)
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			result = event
		} else {
			id, err := s.nextEventID(txn)
			if err != nil {
				return err
			}
			result = event
			result.ID = id
		}
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return txn.Set(eventKey(result.ID), data)
	})
	return result, err
}

func (s *BadgerStore) nextEventID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(keyEventSeq))
	var next int64 = 1
	if err == nil {
		if err := item.Value(func(val []byte) error {
			next = int64(binary.BigEndian.Uint64(val)) + 1
			return nil
		}); err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := txn.Set([]byte(keyEventSeq), buf); err != nil {
		return 0, err
	}
	return next, nil
}

func eventKey(id int64) []byte {
	buf := make([]byte, len(prefixEvent)+8)
	copy(buf, prefixEvent)
	binary.BigEndian.PutUint64(buf[len(prefixEvent):], uint64(id))
	return buf
}

func (s *BadgerStore) ListEventsSince(lastSeenID int64, managementType string) ([]wire.AdminServiceEvent, error) {
	var out []wire.AdminServiceEvent
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixEvent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e wire.AdminServiceEvent
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			if e.ID <= lastSeenID {
				continue
			}
			if managementType != "" && e.Proposal.ProposedCircuit.ManagementType != managementType {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

var _ Store = (*BadgerStore)(nil)
