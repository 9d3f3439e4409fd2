package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"bridgewatch/internal/model"
)

// ErrClosed is returned when the dispatcher has shut down.
var ErrClosed = errors.New("dispatcher closed")

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdShutdown
)

type command struct {
	kind  commandKind
	pda   solana.PublicKey
	route *route
}

// route is the pair of delivery channels registered for one PDA. dropped is
// closed by the listener side when its receiver goes away, so a blocked
// send can detect the dead consumer and prune the entry.
type route struct {
	live    chan model.BridgeEvent
	catchup chan model.BridgeEvent
	dropped chan struct{}

	closeOnce sync.Once
}

// closeChannels is idempotent: during shutdown both the run loop and a
// racing register may try to terminate the same route.
func (r *route) closeChannels() {
	r.closeOnce.Do(func() {
		close(r.live)
		close(r.catchup)
	})
}

// Dispatcher fans decoded events out to per-PDA listeners. The routing
// table is owned by the Run loop alone; registration, unregistration and
// shutdown arrive as commands over a channel, so no lock guards the map.
//
// Events concerning one PDA are delivered in intake order on the channel
// matching their source tag. Sends to the targets of one event run
// concurrently and are all awaited before the next event is taken, so a
// slow consumer throttles only itself plus the cycle it shares.
type Dispatcher struct {
	logger *zap.Logger

	cmds   chan command
	intake chan model.BridgeEvent
	done   chan struct{}

	routes map[solana.PublicKey]*route
}

// NewDispatcher builds a dispatcher with a bounded event intake queue.
func NewDispatcher(intakeCapacity int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if intakeCapacity <= 0 {
		intakeCapacity = 64
	}
	return &Dispatcher{
		logger: logger,
		cmds:   make(chan command, 16),
		intake: make(chan model.BridgeEvent, intakeCapacity),
		done:   make(chan struct{}),
		routes: make(map[solana.PublicKey]*route),
	}
}

// Run drives the dispatcher until ctx is cancelled or Shutdown is called.
// On exit every registered route's channels are closed, which is the
// termination signal listeners observe.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.closeAll()

	for {
		// Apply queued routing mutations before taking the next event so a
		// registration never trails an event that was dispatched after it.
		select {
		case cmd := <-d.cmds:
			if done := d.apply(cmd); done {
				return nil
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-d.cmds:
			if done := d.apply(cmd); done {
				return nil
			}
		case event := <-d.intake:
			d.deliver(ctx, event)
		}
	}
}

// apply executes one routing command; it reports whether the run loop
// should stop.
func (d *Dispatcher) apply(cmd command) bool {
	switch cmd.kind {
	case cmdRegister:
		if old, ok := d.routes[cmd.pda]; ok {
			old.closeChannels()
		}
		d.routes[cmd.pda] = cmd.route
		d.logger.Debug("listener registered", zap.Stringer("pda", cmd.pda))
	case cmdUnregister:
		if r, ok := d.routes[cmd.pda]; ok {
			r.closeChannels()
			delete(d.routes, cmd.pda)
			d.logger.Debug("listener unregistered", zap.Stringer("pda", cmd.pda))
		}
	case cmdShutdown:
		return true
	}
	return false
}

func (d *Dispatcher) closeAll() {
	close(d.done)
	for pda, r := range d.routes {
		r.closeChannels()
		delete(d.routes, pda)
	}
	// Registrations that slipped into the queue while we were stopping
	// still need their channels closed so those listeners terminate.
	for {
		select {
		case cmd := <-d.cmds:
			if cmd.kind == cmdRegister {
				cmd.route.closeChannels()
			}
		default:
			return
		}
	}
}

// deliver fans one event out to every registered route it concerns. Each
// target is served by its own goroutine so one full buffer does not block
// delivery to the others; the cycle completes only once every send has
// either landed or failed against a dropped receiver.
func (d *Dispatcher) deliver(ctx context.Context, event model.BridgeEvent) {
	targets := make(map[solana.PublicKey]*route)
	for _, pda := range event.Data.ConcernedAccounts() {
		if r, ok := d.routes[pda]; ok {
			targets[pda] = r
		}
	}
	if len(targets) == 0 {
		return
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		dead []solana.PublicKey
	)
	for pda, r := range targets {
		ch := r.live
		if event.Source == model.SourceCatchup {
			ch = r.catchup
		}

		wg.Add(1)
		go func(pda solana.PublicKey, r *route, ch chan model.BridgeEvent) {
			defer wg.Done()
			select {
			case ch <- event:
			case <-r.dropped:
				mu.Lock()
				dead = append(dead, pda)
				mu.Unlock()
			case <-ctx.Done():
			}
		}(pda, r, ch)
	}
	wg.Wait()

	for _, pda := range dead {
		if r, ok := d.routes[pda]; ok {
			r.closeChannels()
			delete(d.routes, pda)
			d.logger.Debug("pruned dropped listener", zap.Stringer("pda", pda))
		}
	}
}

// register creates the route for a PDA and enqueues the registration. It
// returns immediately: the route becomes active once the run loop picks
// the command up, which is at worst one command-queue hop away.
func (d *Dispatcher) register(pda solana.PublicKey, capacity int) *route {
	if capacity <= 0 {
		capacity = 16
	}
	r := &route{
		live:    make(chan model.BridgeEvent, capacity),
		catchup: make(chan model.BridgeEvent, capacity),
		dropped: make(chan struct{}),
	}

	// Prefer the stopped path: a select with both cases ready picks
	// randomly, and a registration enqueued after shutdown would leave the
	// caller waiting on channels nobody will ever close.
	select {
	case <-d.done:
		r.closeChannels()
		return r
	default:
	}

	select {
	case d.cmds <- command{kind: cmdRegister, pda: pda, route: r}:
		// The enqueue can land just after closeAll finished draining the
		// queue, leaving the command unread forever. Re-checking done here
		// covers that window; closeChannels being idempotent makes the
		// overlap with the drain harmless.
		select {
		case <-d.done:
			r.closeChannels()
		default:
		}
	case <-d.done:
		r.closeChannels()
	}
	return r
}

// Register subscribes a PDA and returns its live and catchup streams.
// Registration is fire-and-forget; events emitted before it completes are
// recovered by the catchup path.
func (d *Dispatcher) Register(pda solana.PublicKey, capacity int) (live, catchup <-chan model.BridgeEvent) {
	r := d.register(pda, capacity)
	return r.live, r.catchup
}

// Unregister removes a PDA's route and closes its channels. Unregistering
// a PDA that is not registered is a no-op.
func (d *Dispatcher) Unregister(pda solana.PublicKey) {
	select {
	case d.cmds <- command{kind: cmdUnregister, pda: pda}:
	case <-d.done:
	}
}

// Dispatch queues one event for fan-out. It blocks when the intake queue
// is full and fails only when the dispatcher is gone.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.BridgeEvent) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}

	select {
	case d.intake <- event:
		return nil
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown asks the run loop to terminate. Safe to call more than once.
func (d *Dispatcher) Shutdown() {
	select {
	case d.cmds <- command{kind: cmdShutdown}:
	case <-d.done:
	}
}
