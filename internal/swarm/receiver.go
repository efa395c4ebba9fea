package swarm

import (
	"context"
	"log"
	"time"

	"github.com/lanswarm/swarmdns/internal/transport"
)

// Receiver blocks on one socket's Receive, parses each datagram, and
// forwards classified events to the Sender. One Receiver runs per bound
// socket (one for v4, one for v6 when both are bound).
type Receiver struct {
	cfg     NodeConfig
	family  Family
	tr      transport.Transport
	toSend  chan<- inboundEvent
	logger  *log.Logger
	nowFunc func() time.Time
}

func newReceiver(cfg NodeConfig, family Family, tr transport.Transport, toSend chan<- inboundEvent, logger *log.Logger) *Receiver {
	return &Receiver{
		cfg:     cfg,
		family:  family,
		tr:      tr,
		toSend:  toSend,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Run blocks until ctx is done or Receive returns a fatal error, at
// which point it closes done so the Guardian can tear down the
// pipeline — a recv_from failure on a bound socket is fatal per the
// receiver contract, unlike a parse failure, which is merely dropped.
func (r *Receiver) Run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		raw, _, err := r.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Printf("receiver: fatal recv error: %v", err)
			return
		}

		q, resp := classifyDatagram(r.cfg, raw, r.family, r.nowFunc())
		if q == nil && resp == nil {
			continue
		}

		select {
		case r.toSend <- inboundEvent{query: q, response: resp}:
		case <-ctx.Done():
			return
		}
	}
}
