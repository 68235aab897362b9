package scabbard

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/splinter-rs/splinter-go/wire"
)

// StateView is the read-only state surface an Executor sees while
// processing a batch: every address a transaction declares as an input.
type StateView interface {
	Get(address string) ([]byte, bool, error)
}

// Executor applies a batch's transactions against the current state view
// and returns the resulting state changes and per-transaction receipts.
// This is the opaque "Sabre-like" seam of spec §4.7: scabbard never
// interprets transaction payloads itself, it only sequences batches and
// persists whatever an Executor decides.
type Executor interface {
	Execute(batch wire.Batch, view StateView) ([]wire.StateChange, []wire.TransactionReceipt, error)
}

// StubExecutor is a minimal Executor used when no transaction-processor
// integration is wired: every transaction writes its payload verbatim at an
// address made of the first 35 bytes of sha512(family_name || nonce), so the 2PC and state
// tree machinery can be exercised end to end without a real smart-contract
// runtime.
type StubExecutor struct{}

func (StubExecutor) Execute(batch wire.Batch, view StateView) ([]wire.StateChange, []wire.TransactionReceipt, error) {
	changes := make([]wire.StateChange, 0, len(batch.Transactions))
	receipts := make([]wire.TransactionReceipt, 0, len(batch.Transactions))
	for _, txn := range batch.Transactions {
		address := stubAddress(txn)
		change := wire.StateChange{Type: wire.StateSet, Key: address, Value: txn.Payload}
		changes = append(changes, change)
		receipts = append(receipts, wire.TransactionReceipt{
			BatchID:      batch.BatchID,
			TxnID:        hex.EncodeToString(txn.Nonce),
			Status:       wire.BatchStatusValid,
			StateChanges: []wire.StateChange{change},
		})
	}
	return changes, receipts, nil
}

// stubAddress derives a 70-hex-character state address (35 bytes) the way
// Sawtooth-style transaction families do: a hash of the family name salted
// with the transaction's nonce so repeated transactions address distinct
// state entries.
func stubAddress(txn wire.Transaction) string {
	sum := sha512.Sum512(append([]byte(txn.FamilyName), txn.Nonce...))
	return hex.EncodeToString(sum[:35])
}
