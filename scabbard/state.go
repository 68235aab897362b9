package scabbard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/splinter-rs/splinter-go/wire"
)

// trieNode is one node of the content-addressed Merkle-Radix tree: a 16-way
// branch over the hex nibbles of a 70-hex-character state address, grounded
// on original_source's state/merkle module (cli/action/database/state/merkle).
type trieNode struct {
	Children [16]string `json:"children"` // hex node hash, "" if absent
	Value    []byte     `json:"value,omitempty"`
}

func (n *trieNode) hash() string {
	data, _ := json.Marshal(n)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// emptyTreeHash is the root hash of a tree with no entries.
var emptyTreeHash = (&trieNode{}).hash()

// StateTree is the per-service Merkle-Radix state tree (spec §4.7,
// component C7): content-addressed, versioned by root hash, supporting
// point lookups, prefix iteration, and copy-on-write commits so a prior
// root remains readable until pruned.
type StateTree struct {
	db *badger.DB
}

// OpenStateTree opens (creating if necessary) the state tree's node store
// rooted at dir.
func OpenStateTree(dir string) (*StateTree, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("scabbard: opening state tree at %s: %w", dir, err)
	}
	return &StateTree{db: db}, nil
}

func (t *StateTree) Close() error { return t.db.Close() }

// EmptyRoot is the root hash of a tree with no entries.
func (t *StateTree) EmptyRoot() string { return emptyTreeHash }

func nodeKey(hash string) []byte { return []byte("state/node/" + hash) }

func refKey(hash string) []byte { return []byte("state/ref/" + hash) }

func (t *StateTree) loadNode(txn *badger.Txn, hash string) (*trieNode, error) {
	if hash == "" || hash == emptyTreeHash {
		return &trieNode{}, nil
	}
	item, err := txn.Get(nodeKey(hash))
	if err != nil {
		return nil, fmt.Errorf("scabbard: state node %s missing: %w", hash, err)
	}
	var n trieNode
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
		return nil, err
	}
	return &n, nil
}

func (t *StateTree) storeNode(txn *badger.Txn, n *trieNode) (string, error) {
	hash := n.hash()
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	if err := txn.Set(nodeKey(hash), data); err != nil {
		return "", err
	}
	if err := t.incRef(txn, hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (t *StateTree) incRef(txn *badger.Txn, hash string) error {
	count := 0
	if item, err := txn.Get(refKey(hash)); err == nil {
		_ = item.Value(func(val []byte) error {
			fmt.Sscanf(string(val), "%d", &count)
			return nil
		})
	}
	return txn.Set(refKey(hash), []byte(fmt.Sprintf("%d", count+1)))
}

func addressNibbles(address string) []byte {
	return []byte(strings.ToLower(address))
}

// Get reads the value stored at address under root. Returns ok=false if the
// address has no entry.
func (t *StateTree) Get(root, address string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := t.db.View(func(txn *badger.Txn) error {
		nibbles := addressNibbles(address)
		cur := root
		for _, nb := range nibbles {
			node, err := t.loadNode(txn, cur)
			if err != nil {
				return err
			}
			idx, err := nibbleIndex(nb)
			if err != nil {
				return err
			}
			cur = node.Children[idx]
			if cur == "" {
				return nil
			}
		}
		node, err := t.loadNode(txn, cur)
		if err != nil {
			return err
		}
		if node.Value != nil {
			value = append([]byte(nil), node.Value...)
			found = true
		}
		return nil
	})
	return value, found, err
}

// FilterIter returns every (address, value) pair under root whose address
// has addressPrefix as a prefix, sorted by address. This walks the full
// tree rather than descending only the prefix path — acceptable for the
// simulated scale of this module.
func (t *StateTree) FilterIter(root, addressPrefix string) ([]wire.StateChange, error) {
	var out []wire.StateChange
	err := t.db.View(func(txn *badger.Txn) error {
		return t.walk(txn, root, "", func(address string, value []byte) error {
			if strings.HasPrefix(address, addressPrefix) {
				out = append(out, wire.StateChange{Type: wire.StateSet, Key: address, Value: value})
			}
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, err
}

func (t *StateTree) walk(txn *badger.Txn, hash, prefix string, visit func(address string, value []byte) error) error {
	node, err := t.loadNode(txn, hash)
	if err != nil {
		return err
	}
	if node.Value != nil && len(prefix) == 70 {
		if err := visit(prefix, node.Value); err != nil {
			return err
		}
	}
	for i, child := range node.Children {
		if child == "" {
			continue
		}
		if err := t.walk(txn, child, prefix+nibbleChar(i), visit); err != nil {
			return err
		}
	}
	return nil
}

// DryRunCommit computes the resulting root hash of applying changes to root
// without persisting any new nodes, per spec §4.7's dry-run requirement; a
// participant uses it to decide its vote on a VoteRequest.
func (t *StateTree) DryRunCommit(root string, changes []wire.StateChange) (string, error) {
	return t.commit(root, changes, false)
}

// Commit applies changes to root and persists the result, returning the new
// root hash.
func (t *StateTree) Commit(root string, changes []wire.StateChange) (string, error) {
	return t.commit(root, changes, true)
}

func (t *StateTree) commit(root string, changes []wire.StateChange, persist bool) (string, error) {
	var newRoot string
	apply := func(txn *badger.Txn) error {
		cur := root
		for _, ch := range changes {
			var err error
			if ch.Type == wire.StateDelete {
				cur, err = t.setValue(txn, cur, ch.Key, nil)
			} else {
				cur, err = t.setValue(txn, cur, ch.Key, ch.Value)
			}
			if err != nil {
				return err
			}
		}
		newRoot = cur
		return nil
	}

	if !persist {
		// Apply against an update transaction so node writes are visible to
		// the recursive set logic, then discard instead of committing —
		// nothing touches durable state.
		discard := t.db.NewTransaction(true)
		defer discard.Discard()
		if err := apply(discard); err != nil {
			return "", err
		}
		return newRoot, nil
	}

	err := t.db.Update(apply)
	return newRoot, err
}

func (t *StateTree) setValue(txn *badger.Txn, root, address string, value []byte) (string, error) {
	nibbles := addressNibbles(address)
	if len(nibbles) != 70 {
		return "", fmt.Errorf("scabbard: state address %q must be 70 hex characters", address)
	}
	return t.setValueAt(txn, root, nibbles, value)
}

func (t *StateTree) setValueAt(txn *badger.Txn, hash string, nibbles []byte, value []byte) (string, error) {
	node, err := t.loadNode(txn, hash)
	if err != nil {
		return "", err
	}
	if len(nibbles) == 0 {
		node.Value = value
		return t.storeNode(txn, node)
	}
	idx, err := nibbleIndex(nibbles[0])
	if err != nil {
		return "", err
	}
	childHash, err := t.setValueAt(txn, node.Children[idx], nibbles[1:], value)
	if err != nil {
		return "", err
	}
	node.Children[idx] = childHash
	// The new node shares its untouched children with the old one; count
	// that extra reference so pruning the old root leaves them in place.
	for j, child := range node.Children {
		if j == idx || child == "" {
			continue
		}
		if err := t.incRef(txn, child); err != nil {
			return "", err
		}
	}
	return t.storeNode(txn, node)
}

func nibbleIndex(b byte) (int, error) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), nil
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, nil
	default:
		return 0, fmt.Errorf("scabbard: invalid hex nibble %q", b)
	}
}

func nibbleChar(i int) string {
	const hexDigits = "0123456789abcdef"
	return string(hexDigits[i])
}

// Prune permanently removes every node reachable only from staleRoots,
// decrementing the reference count commits keep per node (one for each stored
// node that links to it, plus one for a committed root) and
// deleting a node once its count reaches zero, cascading the decrement into
// its children so a subtree shared with a still-live root survives. It
// returns every leaf address whose entry was actually deleted. Prune is
// idempotent: pruning the same root twice finds its nodes already gone on
// the second pass and returns no keys, and Get against a pruned root fails.
func (t *StateTree) Prune(staleRoots []string) ([]string, error) {
	var removed []string
	err := t.db.Update(func(txn *badger.Txn) error {
		for _, root := range staleRoots {
			if err := t.pruneNode(txn, root, "", &removed); err != nil {
				return err
			}
		}
		return nil
	})
	sort.Strings(removed)
	return removed, err
}

// decRef decrements hash's reference count, deleting the ref entry and
// reporting depleted=true once it reaches zero. A missing ref entry means
// the node was already pruned by an earlier call; treated as a no-op rather
// than an error so Prune stays idempotent.
func (t *StateTree) decRef(txn *badger.Txn, hash string) (depleted bool, err error) {
	item, err := txn.Get(refKey(hash))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	count := 0
	if err := item.Value(func(val []byte) error {
		fmt.Sscanf(string(val), "%d", &count)
		return nil
	}); err != nil {
		return false, err
	}
	count--
	if count <= 0 {
		if err := txn.Delete(refKey(hash)); err != nil && err != badger.ErrKeyNotFound {
			return false, err
		}
		return true, nil
	}
	return false, txn.Set(refKey(hash), []byte(fmt.Sprintf("%d", count)))
}

func (t *StateTree) pruneNode(txn *badger.Txn, hash, prefix string, removed *[]string) error {
	if hash == "" || hash == emptyTreeHash {
		return nil
	}
	depleted, err := t.decRef(txn, hash)
	if err != nil {
		return err
	}
	if !depleted {
		return nil
	}
	node, err := t.loadNode(txn, hash)
	if err != nil {
		return err
	}
	if node.Value != nil && len(prefix) == 70 {
		*removed = append(*removed, prefix)
	}
	if err := txn.Delete(nodeKey(hash)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	for i, child := range node.Children {
		if child == "" {
			continue
		}
		if err := t.pruneNode(txn, child, prefix+nibbleChar(i), removed); err != nil {
			return err
		}
	}
	return nil
}
