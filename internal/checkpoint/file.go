package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

type fileState struct {
	LastSlot      uint64 `json:"last_slot"`
	LastSignature string `json:"last_signature,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

// FileStore persists the checkpoint as a small JSON file. Writes go through
// a temp file and rename so both fields land together or not at all.
type FileStore struct {
	path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (fileState, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, false, nil
		}
		return fileState{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, true, nil
}

func (s *FileStore) LastSlot(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, _, err := s.load()
	if err != nil {
		return 0, err
	}
	return state.LastSlot, nil
}

func (s *FileStore) LastSignature(_ context.Context) (solana.Signature, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok, err := s.load()
	if err != nil || !ok || state.LastSignature == "" {
		return solana.Signature{}, false, err
	}

	sig, err := solana.SignatureFromBase58(state.LastSignature)
	if err != nil {
		return solana.Signature{}, false, fmt.Errorf("parse checkpoint signature: %w", err)
	}
	return sig, true, nil
}

func (s *FileStore) SetSyncState(_ context.Context, slot uint64, signature solana.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.load()
	if err != nil {
		return err
	}
	if ok && slot < current.LastSlot {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	state := fileState{
		LastSlot:  slot,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if !signature.IsZero() {
		state.LastSignature = signature.String()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
