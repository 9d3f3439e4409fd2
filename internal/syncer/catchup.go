package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"bridgewatch/internal/bridge"
	"bridgewatch/internal/chain"
	"bridgewatch/internal/checkpoint"
	"bridgewatch/internal/model"
)

// CatchupConfig holds runtime settings for the historical backfill.
type CatchupConfig struct {
	Program      solana.PublicKey
	PollInterval time.Duration
	PageLimit    int

	// MaxCatchupDepth skips transactions older than this many slots behind
	// the current slot. Zero means unbounded lookback. This is a policy
	// knob for first deployments against a long program history, not a
	// correctness requirement.
	MaxCatchupDepth uint64

	MaxRetries   int
	RetryBackoff time.Duration
}

// CatchupWorker closes the gap between the checkpoint and the present by
// replaying historical program transactions oldest-first.
type CatchupWorker struct {
	cfg    CatchupConfig
	client LedgerClient
	store  checkpoint.Store
	sink   EventSink
	logger *zap.Logger
}

func NewCatchupWorker(cfg CatchupConfig, client LedgerClient, store checkpoint.Store, sink EventSink, logger *zap.Logger) *CatchupWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatchupWorker{cfg: cfg, client: client, store: store, sink: sink, logger: logger}
}

// Run executes backfill passes on the poll interval until ctx is cancelled
// or a pass hits a fatal error. Failing to list signatures at all is fatal;
// a single transaction fetch failure is logged and skipped.
func (w *CatchupWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.backfill(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// backfill performs one full pass: collect everything newer than the
// checkpointed signature, then replay it oldest-first, advancing the
// checkpoint one transaction at a time so a crash mid-pass resumes from
// the last fully handled transaction.
func (w *CatchupWorker) backfill(ctx context.Context) error {
	lastSig, haveSig, err := w.store.LastSignature(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint signature: %w", err)
	}

	backlog, err := w.collectBacklog(ctx, lastSig, haveSig)
	if err != nil {
		return err
	}
	if len(backlog) == 0 {
		return nil
	}

	// Pages arrive newest-first; listeners expect emission order.
	reverse(backlog)

	var currentSlot uint64
	if w.cfg.MaxCatchupDepth > 0 {
		currentSlot, err = w.client.CurrentSlot(ctx)
		if err != nil {
			return fmt.Errorf("get current slot: %w", err)
		}
	}

	w.logger.Info("catchup pass",
		zap.Int("backlog", len(backlog)),
		zap.Uint64("oldest_slot", backlog[0].Slot),
		zap.Uint64("newest_slot", backlog[len(backlog)-1].Slot),
	)

	for _, info := range backlog {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if w.cfg.MaxCatchupDepth > 0 && currentSlot > info.Slot && currentSlot-info.Slot > w.cfg.MaxCatchupDepth {
			w.logger.Debug("skip transaction beyond catchup depth",
				zap.Stringer("signature", info.Signature),
				zap.Uint64("slot", info.Slot),
			)
			continue
		}

		if err := w.replayTransaction(ctx, info); err != nil {
			return err
		}
	}

	return nil
}

// collectBacklog pages backwards through signatures for the program until
// a page comes back empty or the checkpointed signature is found; in the
// latter case only the entries newer than it are kept.
func (w *CatchupWorker) collectBacklog(ctx context.Context, lastSig solana.Signature, haveSig bool) ([]chain.SignatureInfo, error) {
	var backlog []chain.SignatureInfo
	var before solana.Signature

	for {
		page, err := w.fetchPage(ctx, before)
		if err != nil {
			return nil, fmt.Errorf("list signatures: %w", err)
		}
		if len(page) == 0 {
			return backlog, nil
		}

		if haveSig {
			for i, info := range page {
				if info.Signature == lastSig {
					return append(backlog, page[:i]...), nil
				}
			}
		}

		backlog = append(backlog, page...)
		before = page[len(page)-1].Signature
	}
}

func (w *CatchupWorker) fetchPage(ctx context.Context, before solana.Signature) ([]chain.SignatureInfo, error) {
	var page []chain.SignatureInfo
	err := withRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, w.logger, func(ctx context.Context) error {
		var err error
		page, err = w.client.SignaturesForAddress(ctx, w.cfg.Program, before, w.cfg.PageLimit)
		return err
	})
	return page, err
}

func (w *CatchupWorker) replayTransaction(ctx context.Context, info chain.SignatureInfo) error {
	var txLogs *chain.TransactionLogs
	err := withRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, w.logger, func(ctx context.Context) error {
		var err error
		txLogs, err = w.client.TransactionLogs(ctx, info.Signature)
		return err
	})
	if err != nil {
		// One unfetchable transaction must not abort the pass.
		w.logger.Warn("transaction fetch failed, skipping",
			zap.Stringer("signature", info.Signature),
			zap.Uint64("slot", info.Slot),
			zap.Error(err),
		)
		return nil
	}

	for _, data := range bridge.DecodeLogs(txLogs.Logs) {
		event := model.BridgeEvent{
			Source:    model.SourceCatchup,
			Slot:      txLogs.Slot,
			Signature: info.Signature,
			Data:      data,
		}
		if err := w.sink.Dispatch(ctx, event); err != nil {
			return fmt.Errorf("dispatch catchup event: %w", err)
		}
	}

	if err := w.store.SetSyncState(ctx, txLogs.Slot, info.Signature); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

func reverse(infos []chain.SignatureInfo) {
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
}
