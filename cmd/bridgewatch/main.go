package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"bridgewatch/internal/chain"
	"bridgewatch/internal/checkpoint"
	"bridgewatch/internal/config"
	"bridgewatch/internal/dispatch"
	"bridgewatch/internal/syncer"
)

func main() {
	root := &cobra.Command{
		Use:          "bridgewatch",
		Short:        "Bridge program event synchronizer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synchronization pipeline",
		RunE:  runPipeline,
	}

	runCmd.Flags().String("rpc", "", "Solana RPC URL")
	runCmd.Flags().String("ws", "", "Solana websocket URL")
	runCmd.Flags().String("program", "", "bridge program ID (base58)")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the checkpoint (overrides the file store)")
	runCmd.Flags().String("checkpoint-name", "bridgewatch", "checkpoint row name in Postgres")
	runCmd.Flags().Duration("poll-interval", 10*time.Second, "catchup poll interval")
	runCmd.Flags().Int("page-limit", 1000, "signatures per catchup page")
	runCmd.Flags().Uint64("max-catchup-depth", 0, "maximum catchup lookback in slots (0 = unbounded)")
	runCmd.Flags().Int("intake-buffer", 256, "dispatcher intake queue capacity")
	runCmd.Flags().Int("listener-buffer", 64, "per-listener channel capacity")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().StringSlice("watch", nil, "profile PDAs to log events for (comma-separated)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)
	root.AddCommand(newTxCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.WSURL == "" {
		return fmt.Errorf("ws url is required")
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chain.NewClient(cfg.RPCURL, cfg.WSURL)
	defer client.Close()

	store, closeStore, err := newCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher := dispatch.NewDispatcher(cfg.IntakeBuffer, logger)

	catchupWorker := syncer.NewCatchupWorker(syncer.CatchupConfig{
		Program:         programID,
		PollInterval:    cfg.PollInterval,
		PageLimit:       cfg.PageLimit,
		MaxCatchupDepth: cfg.MaxCatchupDepth,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, client, store, dispatcher, logger)

	liveWorker := syncer.NewLiveWorker(syncer.LiveConfig{
		Program:      programID,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logStreamer{client}, store, dispatcher, logger)

	synchronizer := syncer.NewSynchronizer(catchupWorker, liveWorker, logger)

	logger.Info("bridgewatch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("ws", cfg.WSURL),
		zap.Stringer("program", programID),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("page_limit", cfg.PageLimit),
		zap.Uint64("max_catchup_depth", cfg.MaxCatchupDepth),
		zap.Int("watched", len(cfg.Watch)),
	)

	for _, input := range cfg.Watch {
		pda, err := solana.PublicKeyFromBase58(input)
		if err != nil {
			return fmt.Errorf("invalid watch address %q: %w", input, err)
		}
		listener := dispatch.NewListener(dispatcher, pda, cfg.ListenerBuffer)
		defer listener.Close()
		go logEvents(ctx, listener, logger)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(ctx)
	})
	group.Go(func() error {
		defer dispatcher.Shutdown()
		return synchronizer.Run(ctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newCheckpointStore(ctx context.Context, cfg config.Config) (checkpoint.Store, func(), error) {
	if cfg.PGDSN != "" {
		store, err := checkpoint.NewPostgresStore(ctx, cfg.PGDSN, cfg.CheckpointName)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres checkpoint: %w", err)
		}
		return store, store.Close, nil
	}
	return checkpoint.NewFileStore(cfg.Checkpoint), func() {}, nil
}

// logStreamer adapts the chain client to the worker-facing interface.
type logStreamer struct {
	client *chain.Client
}

func (s logStreamer) SubscribeLogs(ctx context.Context, mentions solana.PublicKey) (syncer.LogStream, error) {
	return s.client.SubscribeLogs(ctx, mentions)
}

// logEvents drains both sub-streams of a watched listener into the log.
func logEvents(ctx context.Context, listener *dispatch.Listener, logger *zap.Logger) {
	go func() {
		for {
			event, err := listener.NextCatchup(ctx)
			if err != nil {
				return
			}
			logger.Info("event",
				zap.String("stream", "catchup"),
				zap.Stringer("pda", listener.PDA()),
				zap.String("type", event.Data.EventName()),
				zap.Uint64("slot", event.Slot),
				zap.Stringer("signature", event.Signature),
			)
		}
	}()

	for {
		event, err := listener.NextLive(ctx)
		if err != nil {
			return
		}
		logger.Info("event",
			zap.String("stream", "live"),
			zap.Stringer("pda", listener.PDA()),
			zap.String("type", event.Data.EventName()),
			zap.Uint64("slot", event.Slot),
			zap.Stringer("signature", event.Signature),
		)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
