// Package syncer keeps the event pipeline complete: a catchup worker
// replays ledger history the process missed while a live worker follows
// the program's log subscription, both feeding the dispatcher through a
// shared slot/signature checkpoint that keeps the two paths from
// overlapping.
package syncer

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bridgewatch/internal/chain"
	"bridgewatch/internal/model"
)

// LedgerClient is the RPC surface the catchup worker consumes.
type LedgerClient interface {
	SignaturesForAddress(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]chain.SignatureInfo, error)
	TransactionLogs(ctx context.Context, signature solana.Signature) (*chain.TransactionLogs, error)
	CurrentSlot(ctx context.Context) (uint64, error)
}

// LogStream is one live subscription to program logs.
type LogStream interface {
	Recv(ctx context.Context) (*chain.LogNotification, error)
	Close()
}

// LogStreamer opens log subscriptions for the live worker.
type LogStreamer interface {
	SubscribeLogs(ctx context.Context, mentions solana.PublicKey) (LogStream, error)
}

// EventSink receives decoded events; in production it is the dispatcher.
type EventSink interface {
	Dispatch(ctx context.Context, event model.BridgeEvent) error
}

// Synchronizer runs the catchup and live workers as one unit. The two are
// co-dependent: a pipeline with only one of them silently produces gaps or
// duplicates, so a failure in either cancels the other and surfaces as the
// synchronizer's error.
type Synchronizer struct {
	catchup *CatchupWorker
	live    *LiveWorker
	logger  *zap.Logger
}

func NewSynchronizer(catchup *CatchupWorker, live *LiveWorker, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{catchup: catchup, live: live, logger: logger}
}

// Run blocks until ctx is cancelled or either worker fails.
func (s *Synchronizer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := s.catchup.Run(ctx); err != nil {
			s.logger.Error("catchup worker stopped", zap.Error(err))
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := s.live.Run(ctx); err != nil {
			s.logger.Error("live worker stopped", zap.Error(err))
			return err
		}
		return nil
	})

	return group.Wait()
}
