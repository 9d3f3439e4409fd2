package dispatch

import (
	"context"
	"runtime"
	"sync"

	"github.com/gagliardetto/solana-go"

	"bridgewatch/internal/model"
)

// Listener is a per-PDA subscription handle with two independent streams:
// catchup carries replayed history, live carries new activity. The two are
// ordered within themselves but not against each other; a typical consumer
// drains catchup fully before switching to live.
//
// Callers must Close the listener when done. A finalizer issues the
// unregistration as a fallback for handles that are simply dropped, but it
// runs at the garbage collector's leisure — never rely on it for
// promptness.
type Listener struct {
	pda        solana.PublicKey
	dispatcher *Dispatcher
	route      *route

	closeOnce sync.Once
}

// NewListener registers a listener for the PDA with bounded channels of
// the given capacity. Registration is asynchronous: events may lag briefly
// until the dispatcher processes it, and the catchup worker guarantees
// nothing is lost in that window.
func NewListener(d *Dispatcher, pda solana.PublicKey, capacity int) *Listener {
	l := &Listener{
		pda:        pda,
		dispatcher: d,
		route:      d.register(pda, capacity),
	}
	runtime.SetFinalizer(l, (*Listener).Close)
	return l
}

// PDA returns the address this listener is subscribed to.
func (l *Listener) PDA() solana.PublicKey { return l.pda }

// NextLive blocks until the next live event, ctx cancellation, or stream
// end. ErrClosed means no more events will ever arrive.
func (l *Listener) NextLive(ctx context.Context) (model.BridgeEvent, error) {
	return next(ctx, l.route.live)
}

// NextCatchup blocks until the next replayed event, ctx cancellation, or
// stream end. ErrClosed means the catchup stream is finished for good.
func (l *Listener) NextCatchup(ctx context.Context) (model.BridgeEvent, error) {
	return next(ctx, l.route.catchup)
}

func next(ctx context.Context, ch <-chan model.BridgeEvent) (model.BridgeEvent, error) {
	select {
	case event, ok := <-ch:
		if !ok {
			return model.BridgeEvent{}, ErrClosed
		}
		return event, nil
	case <-ctx.Done():
		return model.BridgeEvent{}, ctx.Err()
	}
}

// Close unregisters the listener. It is idempotent: explicit Close and the
// finalizer fallback together issue exactly one unregistration.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		runtime.SetFinalizer(l, nil)
		close(l.route.dropped)
		l.dispatcher.Unregister(l.pda)
	})
}
