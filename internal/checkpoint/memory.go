package checkpoint

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemoryStore is a non-durable Store for tests and throwaway runs.
type MemoryStore struct {
	mu        sync.Mutex
	slot      uint64
	signature solana.Signature
	set       bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LastSlot(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot, nil
}

func (s *MemoryStore) LastSignature(context.Context) (solana.Signature, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature, s.set && !s.signature.IsZero(), nil
}

func (s *MemoryStore) SetSyncState(_ context.Context, slot uint64, signature solana.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && slot < s.slot {
		return nil
	}
	s.slot = slot
	s.signature = signature
	s.set = true
	return nil
}
