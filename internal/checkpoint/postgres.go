package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the checkpoint in a single sync_state row. The UPSERT
// writes slot and signature in one statement, which gives the atomic
// two-field update the workers rely on.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresStore connects to the DSN and scopes the checkpoint under a
// name so several pipelines can share one database.
func NewPostgresStore(ctx context.Context, dsn, name string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		return nil, fmt.Errorf("checkpoint name is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool, name: name}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_state (
			name TEXT PRIMARY KEY,
			last_slot BIGINT NOT NULL,
			last_signature TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure sync_state table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) LastSlot(ctx context.Context) (uint64, error) {
	var slot int64
	row := s.pool.QueryRow(ctx, `SELECT last_slot FROM sync_state WHERE name=$1`, s.name)
	if err := row.Scan(&slot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(slot), nil
}

func (s *PostgresStore) LastSignature(ctx context.Context) (solana.Signature, bool, error) {
	var signature *string
	row := s.pool.QueryRow(ctx, `SELECT last_signature FROM sync_state WHERE name=$1`, s.name)
	if err := row.Scan(&signature); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return solana.Signature{}, false, nil
		}
		return solana.Signature{}, false, err
	}
	if signature == nil || *signature == "" {
		return solana.Signature{}, false, nil
	}

	sig, err := solana.SignatureFromBase58(*signature)
	if err != nil {
		return solana.Signature{}, false, fmt.Errorf("parse checkpoint signature: %w", err)
	}
	return sig, true, nil
}

func (s *PostgresStore) SetSyncState(ctx context.Context, slot uint64, signature solana.Signature) error {
	var sigText *string
	if !signature.IsZero() {
		encoded := signature.String()
		sigText = &encoded
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_slot, last_signature, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_slot = EXCLUDED.last_slot,
			last_signature = EXCLUDED.last_signature,
			updated_at = now()
		WHERE sync_state.last_slot <= EXCLUDED.last_slot
	`, s.name, int64(slot), sigText)
	return err
}
