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

// LiveConfig holds runtime settings for the live subscription path.
type LiveConfig struct {
	Program solana.PublicKey

	MaxRetries   int
	RetryBackoff time.Duration
}

// LiveWorker follows the program's log subscription for minimum-latency
// delivery, discarding anything the checkpoint already covers.
type LiveWorker struct {
	cfg      LiveConfig
	streamer LogStreamer
	store    checkpoint.Store
	sink     EventSink
	logger   *zap.Logger
}

func NewLiveWorker(cfg LiveConfig, streamer LogStreamer, store checkpoint.Store, sink EventSink, logger *zap.Logger) *LiveWorker {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveWorker{cfg: cfg, streamer: streamer, store: store, sink: sink, logger: logger}
}

// Run holds one subscription open at a time, resubscribing with backoff on
// transport drops. Failure to establish or re-establish the subscription
// after all retries is fatal.
func (w *LiveWorker) Run(ctx context.Context) error {
	for {
		stream, err := w.subscribe(ctx)
		if err != nil {
			return fmt.Errorf("establish log subscription: %w", err)
		}

		err = w.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isTransportError(err) {
			return err
		}
		w.logger.Warn("log subscription dropped, resubscribing", zap.Error(err))
	}
}

func (w *LiveWorker) subscribe(ctx context.Context) (LogStream, error) {
	var stream LogStream
	err := withRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, w.logger, func(ctx context.Context) error {
		var err error
		stream, err = w.streamer.SubscribeLogs(ctx, w.cfg.Program)
		return err
	})
	return stream, err
}

// consume forwards notifications until the stream errors. A returned error
// is a transport drop unless it is wrapped as fatal by the message path.
func (w *LiveWorker) consume(ctx context.Context, stream LogStream) error {
	for {
		message, err := stream.Recv(ctx)
		if err != nil {
			return transportError{err}
		}

		if err := w.handleMessage(ctx, message); err != nil {
			return err
		}
	}
}

func (w *LiveWorker) handleMessage(ctx context.Context, message *chain.LogNotification) error {
	lastSlot, err := w.store.LastSlot(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint slot: %w", err)
	}

	// Catchup may already have advanced past this slot while the
	// subscription was buffering; the same guard also rejects re-delivery
	// of anything either path already processed.
	if message.Slot <= lastSlot {
		w.logger.Debug("discard stale live message",
			zap.Uint64("slot", message.Slot),
			zap.Uint64("checkpoint_slot", lastSlot),
		)
		return nil
	}

	for _, data := range bridge.DecodeLogs(message.Logs) {
		event := model.BridgeEvent{
			Source:    model.SourceLive,
			Slot:      message.Slot,
			Signature: message.Signature,
			Data:      data,
		}
		if err := w.sink.Dispatch(ctx, event); err != nil {
			return fmt.Errorf("dispatch live event: %w", err)
		}
	}

	return w.persist(ctx, message)
}

func (w *LiveWorker) persist(ctx context.Context, message *chain.LogNotification) error {
	if err := w.store.SetSyncState(ctx, message.Slot, message.Signature); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// transportError marks a stream failure that warrants resubscription
// rather than pipeline shutdown.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	_, ok := err.(transportError)
	return ok
}
