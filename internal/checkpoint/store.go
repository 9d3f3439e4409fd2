package checkpoint

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Store persists synchronization progress as a (slot, signature) pair.
//
// SetSyncState must write both fields atomically: a checkpoint holding a
// slot from one transaction and a signature from another cannot be resumed
// from after a crash. Reads may run concurrently with each other but
// workers only read at their loop-start points.
type Store interface {
	// LastSlot returns the slot of the last fully processed transaction,
	// zero if nothing has been processed yet.
	LastSlot(ctx context.Context) (uint64, error)

	// LastSignature returns the signature of the last fully processed
	// transaction; ok is false when no checkpoint exists.
	LastSignature(ctx context.Context) (solana.Signature, bool, error)

	// SetSyncState atomically records both checkpoint fields. The stored
	// slot never decreases: a write below the persisted slot is dropped,
	// so a worker finishing older work cannot roll the frontier back
	// behind one that has already advanced it.
	SetSyncState(ctx context.Context, slot uint64, signature solana.Signature) error
}
