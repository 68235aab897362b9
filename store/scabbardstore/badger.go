package scabbardstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/wire"
)

// BadgerStore is the badger-backed scabbard store, the 2PC analogue of
// adminstore.BadgerStore. It is the only scabbard store backend (unlike
// adminstore's badger+pebble pair).
type BadgerStore struct {
	db *badger.DB
}

func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("scabbardstore: opening badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func commitEntryKey(serviceID string, epoch uint64) []byte {
	prefix := "scabbard/commit/" + serviceID + "/"
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], epoch)
	return buf
}

func commitEntryPrefix(serviceID string) []byte {
	return []byte("scabbard/commit/" + serviceID + "/")
}

func contextKey(serviceID string) []byte {
	return []byte("scabbard/context/" + serviceID)
}

func notificationKey(serviceID string, id uint64) []byte {
	prefix := "scabbard/notification/" + serviceID + "/"
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return buf
}

func notificationPrefix(serviceID string) []byte {
	return []byte("scabbard/notification/" + serviceID + "/")
}

func notificationSeqKey(serviceID string) []byte {
	return []byte("scabbard/notification_seq/" + serviceID)
}

func (s *BadgerStore) GetLastCommitEntry(serviceID string) (wire.CommitEntry, bool, error) {
	var out wire.CommitEntry
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true})
		defer it.Close()
		prefix := commitEntryPrefix(serviceID)
		seekKey := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			found = true
			return it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &out) })
		}
		return nil
	})
	return out, found, err
}

func (s *BadgerStore) AddCommitEntry(serviceID string, entry wire.CommitEntry) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := commitEntryKey(serviceID, entry.Epoch)
		if _, err := txn.Get(key); err == nil {
			return splintererror.New(splintererror.ConstraintViolation, "commit entry for service %s epoch %d already exists", serviceID, entry.Epoch)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) UpdateCommitEntryDecision(serviceID string, epoch uint64, decision wire.Decision, decidedAt int64) error {
	key := commitEntryKey(serviceID, epoch)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return splintererror.New(splintererror.NotFound, "no commit entry for service %s epoch %d", serviceID, epoch)
		} else if err != nil {
			return err
		}
		var entry wire.CommitEntry
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
			return err
		}
		entry.Decision = decision
		entry.DecidedAt = decidedAt
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) ListCommitEntries(serviceID string) ([]wire.CommitEntry, error) {
	var out []wire.CommitEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := commitEntryPrefix(serviceID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e wire.CommitEntry
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, err
}

func (s *BadgerStore) GetContext(serviceID string) (ConsensusContext, bool, error) {
	var ctx ConsensusContext
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contextKey(serviceID))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &ctx) })
	})
	return ctx, found, err
}

func (s *BadgerStore) PutContext(serviceID string, ctx ConsensusContext) error {
	data, err := json.Marshal(ctx)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contextKey(serviceID), data)
	})
}

func (s *BadgerStore) AddNotification(serviceID string, n SupervisorNotification) (SupervisorNotification, error) {
	var result SupervisorNotification
	err := s.db.Update(func(txn *badger.Txn) error {
		id, err := s.nextNotificationID(txn, serviceID)
		if err != nil {
			return err
		}
		result = n
		result.ID = id
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return txn.Set(notificationKey(serviceID, id), data)
	})
	return result, err
}

func (s *BadgerStore) nextNotificationID(txn *badger.Txn, serviceID string) (uint64, error) {
	item, err := txn.Get(notificationSeqKey(serviceID))
	var next uint64 = 1
	if err == nil {
		if err := item.Value(func(val []byte) error {
			next = binary.BigEndian.Uint64(val) + 1
			return nil
		}); err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := txn.Set(notificationSeqKey(serviceID), buf); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *BadgerStore) ListPendingNotifications(serviceID string) ([]SupervisorNotification, error) {
	var out []SupervisorNotification
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := notificationPrefix(serviceID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n SupervisorNotification
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
				return err
			}
			if !n.Consumed {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *BadgerStore) MarkNotificationConsumed(serviceID string, notificationID uint64) error {
	key := notificationKey(serviceID, notificationID)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return splintererror.New(splintererror.NotFound, "no notification %d for service %s", notificationID, serviceID)
		} else if err != nil {
			return err
		}
		var n SupervisorNotification
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
			return err
		}
		n.Consumed = true
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

var _ Store = (*BadgerStore)(nil)
