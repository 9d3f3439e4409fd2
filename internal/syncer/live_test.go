package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"bridgewatch/internal/chain"
	"bridgewatch/internal/checkpoint"
	"bridgewatch/internal/model"
)

// scriptedStream yields queued notifications, then fails with err.
type scriptedStream struct {
	queue []*chain.LogNotification
	err   error
}

func (s *scriptedStream) Recv(ctx context.Context) (*chain.LogNotification, error) {
	if len(s.queue) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	message := s.queue[0]
	s.queue = s.queue[1:]
	return message, nil
}

func (s *scriptedStream) Close() {}

// scriptedStreamer hands out streams in order, then fails subscriptions.
type scriptedStreamer struct {
	streams []LogStream
	calls   int
}

func (s *scriptedStreamer) SubscribeLogs(context.Context, solana.PublicKey) (LogStream, error) {
	s.calls++
	if len(s.streams) == 0 {
		return nil, errors.New("ws endpoint gone")
	}
	stream := s.streams[0]
	s.streams = s.streams[1:]
	return stream, nil
}

func newLiveFixture(t *testing.T) (*LiveWorker, *collectorSink, *checkpoint.MemoryStore, *scriptedStreamer) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	sink := &collectorSink{}
	streamer := &scriptedStreamer{}
	worker := NewLiveWorker(LiveConfig{RetryBackoff: 1}, streamer, store, sink, nil)
	return worker, sink, store, streamer
}

func TestLiveDiscardsSlotsAtOrBelowCheckpoint(t *testing.T) {
	worker, sink, store, _ := newLiveFixture(t)
	ctx := context.Background()
	profile := solana.NewWallet().PublicKey()

	if err := store.SetSyncState(ctx, 110, sigN(9)); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	stale := &chain.LogNotification{
		Slot:      95,
		Signature: sigN(1),
		Logs:      fundedLogs(t, profile, 1),
	}
	if err := worker.handleMessage(ctx, stale); err != nil {
		t.Fatalf("handle stale message: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("stale message must not be forwarded")
	}
	slot, _ := store.LastSlot(ctx)
	if slot != 110 {
		t.Fatalf("checkpoint moved on a discarded message: %d", slot)
	}

	// Equal slot is also covered territory.
	equal := &chain.LogNotification{Slot: 110, Signature: sigN(2), Logs: fundedLogs(t, profile, 2)}
	if err := worker.handleMessage(ctx, equal); err != nil {
		t.Fatalf("handle equal-slot message: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("equal-slot message must not be forwarded")
	}
}

func TestLiveForwardsAndCheckpointsNewSlots(t *testing.T) {
	worker, sink, store, _ := newLiveFixture(t)
	ctx := context.Background()
	profile := solana.NewWallet().PublicKey()

	if err := store.SetSyncState(ctx, 110, sigN(9)); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	fresh := &chain.LogNotification{
		Slot:      120,
		Signature: sigN(5),
		Logs:      fundedLogs(t, profile, 5),
	}
	if err := worker.handleMessage(ctx, fresh); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Source != model.SourceLive || events[0].Slot != 120 || events[0].Signature != sigN(5) {
		t.Fatalf("event mis-tagged: %+v", events[0])
	}

	slot, _ := store.LastSlot(ctx)
	sig, ok, _ := store.LastSignature(ctx)
	if slot != 120 || !ok || sig != sigN(5) {
		t.Fatalf("checkpoint not advanced: slot=%d sig=%s ok=%v", slot, sig, ok)
	}
}

func TestLiveCatchupThenLiveDeliversAtMostOnce(t *testing.T) {
	// The catchup path processed signature sigN(5) at slot 110 and wrote
	// the checkpoint; the live subscription then replays the same
	// transaction. Slot gating must drop it.
	worker, sink, store, _ := newLiveFixture(t)
	ctx := context.Background()
	profile := solana.NewWallet().PublicKey()

	if err := store.SetSyncState(ctx, 110, sigN(5)); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	duplicate := &chain.LogNotification{
		Slot:      110,
		Signature: sigN(5),
		Logs:      fundedLogs(t, profile, 5),
	}
	if err := worker.handleMessage(ctx, duplicate); err != nil {
		t.Fatalf("handle duplicate: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("duplicate delivery across catchup and live")
	}
}

func TestLiveResubscribesOnTransportDropThenFatal(t *testing.T) {
	worker, sink, _, streamer := newLiveFixture(t)
	profile := solana.NewWallet().PublicKey()

	streamer.streams = []LogStream{
		&scriptedStream{
			queue: []*chain.LogNotification{
				{Slot: 101, Signature: sigN(1), Logs: fundedLogs(t, profile, 1)},
			},
			err: errors.New("connection reset"),
		},
		&scriptedStream{
			queue: []*chain.LogNotification{
				{Slot: 105, Signature: sigN(2), Logs: fundedLogs(t, profile, 2)},
			},
			err: errors.New("connection reset"),
		},
	}

	err := worker.Run(context.Background())
	if err == nil {
		t.Fatalf("expected fatal error once resubscription is impossible")
	}

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected events from both subscriptions, got %d", len(events))
	}
	if events[0].Slot != 101 || events[1].Slot != 105 {
		t.Fatalf("unexpected event slots: %+v", events)
	}
	// Two successful subscriptions plus the failed final attempt.
	if streamer.calls != 3 {
		t.Fatalf("expected 3 subscribe attempts, got %d", streamer.calls)
	}
}

func TestSynchronizerStopsBothWorkersOnFailure(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	sink := &collectorSink{}

	// Catchup fails immediately; the live worker is parked on a stream
	// that only returns when its context is cancelled.
	ledger := &fakeLedger{listErr: errors.New("rpc unreachable")}
	catchup := NewCatchupWorker(CatchupConfig{PageLimit: 10}, ledger, store, sink, nil)

	streamer := &scriptedStreamer{streams: []LogStream{&scriptedStream{}}}
	live := NewLiveWorker(LiveConfig{RetryBackoff: 1}, streamer, store, sink, nil)

	sync := NewSynchronizer(catchup, live, nil)
	err := sync.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the catchup failure to surface")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("expected the root cause, got cancellation: %v", err)
	}
}
