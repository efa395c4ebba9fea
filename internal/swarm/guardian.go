package swarm

import (
	"context"
	"log"
	"sync"
)

// Guardian is the root supervisor: it spawns Sockets, one Receiver per
// bound socket, the Sender, and the Updater, relays external control
// messages to the Sender, and tears the whole pipeline down when any
// child terminates.
type Guardian struct {
	sockets *Sockets
	sender  *Sender

	control chan controlMsg

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Spawn builds and starts the full pipeline: binds sockets per cfg's
// IPClass, wires the Sender/Updater size-subscription cycle, and starts
// every actor goroutine. The returned Guardian's control channel is the
// only way the public Guard mutates LocalAdvertisement.
func Spawn(cfg NodeConfig, initial *LocalAdvertisement, callback func(Peer), logger *log.Logger) (*Guardian, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cadence.Seconds()*cfg.ResponseRate < 1 {
		logger.Printf("swarm: warning: cadence·rate = %g < 1; suppression cutoff rounds up to 1", cfg.Cadence.Seconds()*cfg.ResponseRate)
	}

	sockets, err := OpenSockets(cfg.IPClass)
	if err != nil {
		return nil, err
	}

	updater := newUpdater(cfg, callback, logger)
	sender := newSender(cfg, initial, sockets, updater.obsCh, logger)

	sizeCh := make(chan sizeUpdate, 8)
	updater.Subscribe(sizeCh)
	sender.sizeCh = sizeCh

	g := &Guardian{
		sockets: sockets,
		sender:  sender,
		control: sender.control,
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		updater.Run(ctx)
	}()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		sender.Run(ctx)
	}()

	if sockets.V4 != nil {
		recvDone := make(chan struct{})
		r := newReceiver(cfg, FamilyV4, sockets.V4, sender.inbound, logger)
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			r.Run(ctx, recvDone)
		}()
		g.watchChildDeath(ctx, cancel, recvDone)
	}
	if sockets.V6 != nil {
		recvDone := make(chan struct{})
		r := newReceiver(cfg, FamilyV6, sockets.V6, sender.inbound, logger)
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			r.Run(ctx, recvDone)
		}()
		g.watchChildDeath(ctx, cancel, recvDone)
	}

	return g, nil
}

// watchChildDeath cancels the whole pipeline's context the moment one
// Receiver's Run loop returns (a recv_from failure) — Guardian supervises
// by all-or-nothing teardown, never per-child restart.
func (g *Guardian) watchChildDeath(ctx context.Context, cancel context.CancelFunc, childDone <-chan struct{}) {
	go func() {
		select {
		case <-childDone:
			cancel()
		case <-ctx.Done():
		}
	}()
}

// Control enqueues one LocalAdvertisement mutation to the Sender.
func (g *Guardian) Control(msg ControlMsg) {
	select {
	case g.control <- msg:
	default:
		// Control channel is generously buffered; a full channel means
		// the embedder is issuing control calls far faster than the
		// Sender can apply them. Block rather than silently drop a
		// mutation the caller expects to take effect.
		g.control <- msg
	}
}

// Shutdown stops every actor and releases the bound sockets. It blocks
// until every goroutine has returned.
//
// Sockets are closed before waiting: a Receiver's call to Receive is
// blocked in a plain socket read with no deadline, so canceling ctx
// alone would never unblock it. Closing the underlying socket is what
// makes Receive return, at which point the Receiver observes the
// already-canceled ctx and exits cleanly instead of logging a fatal
// recv error.
func (g *Guardian) Shutdown() {
	g.cancel()
	g.sockets.Close()
	g.wg.Wait()
}
