package swarm

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	mathrand "math/rand"
	"net"
	"time"
)

type phase int

const (
	phaseQuiescent phase = iota
	phaseResponding
)

// responseDelayUnit is the base unit Phase 2's suppression window is
// divided among the expected ceil(τ·φ) responders.
const responseDelayUnit = 100 * time.Millisecond

type timeoutMsg struct {
	epoch int64
}

// Sender owns the query/response state machine, the rate-limiting
// timers, and LocalAdvertisement. It is the only goroutine that ever
// mutates LocalAdvertisement or the cached response packet — every
// other actor only ever hands it messages.
type Sender struct {
	cfg     NodeConfig
	la      *LocalAdvertisement
	sockets *Sockets
	logger  *log.Logger
	rng     *mathrand.Rand

	inbound   chan inboundEvent
	control   chan controlMsg
	sizeCh    chan sizeUpdate
	timeoutCh chan timeoutMsg
	toUpdater chan<- updaterObservation

	phase          phase
	epoch          int64
	swarmSize      int
	mode           Family
	hasResponded   bool
	responseCount  int
	extraDelay     time.Duration
	cachedResponse []byte
	timer          *time.Timer
}

func newSender(cfg NodeConfig, la *LocalAdvertisement, sockets *Sockets, toUpdater chan<- updaterObservation, logger *log.Logger) *Sender {
	return &Sender{
		cfg:       cfg,
		la:        la,
		sockets:   sockets,
		logger:    logger,
		rng:       mathrand.New(mathrand.NewSource(seedInt64())),
		inbound:   make(chan inboundEvent, 256),
		control:   make(chan controlMsg, 32),
		sizeCh:    make(chan sizeUpdate, 8),
		timeoutCh: make(chan timeoutMsg, 8),
		toUpdater: toUpdater,
		swarmSize: 1,
	}
}

func seedInt64() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return time.Now().UnixNano()
	}
	return n.Int64()
}

// Run executes the state machine until ctx is canceled.
func (s *Sender) Run(ctx context.Context) {
	s.rebuildCachedResponse()
	s.enterQuiescent(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.inbound:
			s.handleInbound(ctx, ev)
		case c := <-s.control:
			s.handleControl(c)
		case su := <-s.sizeCh:
			s.swarmSize = su.size
		case t := <-s.timeoutCh:
			if t.epoch != s.epoch {
				continue // stale timer from a phase we already left
			}
			s.handleTimeout(ctx)
		}
	}
}

func (s *Sender) handleInbound(ctx context.Context, ev inboundEvent) {
	if ev.query != nil && s.phase == phaseQuiescent {
		s.enterResponding(ctx, ev.query.family)
	}
	if ev.response != nil {
		s.forwardToUpdater(ev.response.peers)
		if s.phase == phaseResponding {
			s.responseCount += len(ev.response.peers)
			cutoff := s.cutoff()
			if s.responseCount >= cutoff {
				s.hasResponded = false // suppressed: someone else covered this cycle
				s.enterQuiescent(ctx)
			}
		}
	}
}

func (s *Sender) forwardToUpdater(peers map[string]Peer) {
	select {
	case s.toUpdater <- updaterObservation{peers: peers}:
	default:
		s.logger.Printf("sender: updater inbox full, dropping observation of %d peers", len(peers))
	}
}

func (s *Sender) handleTimeout(ctx context.Context) {
	switch s.phase {
	case phaseQuiescent:
		packet, err := BuildQueryPacket(s.cfg)
		if err != nil {
			s.logger.Printf("sender: failed to build query: %v", err)
		} else if err := s.sockets.Send(ctx, packet, FamilyAny); err != nil {
			s.logger.Printf("sender: failed to send query: %v", err)
		}
		s.enterResponding(ctx, FamilyAny)
	case phaseResponding:
		if !s.la.IsEmpty() {
			if err := s.sockets.Send(ctx, s.cachedResponse, s.mode); err != nil {
				s.logger.Printf("sender: failed to send response: %v", err)
			}
			s.hasResponded = true
		} else {
			s.hasResponded = false
		}
		s.enterQuiescent(ctx)
	}
}

func (s *Sender) handleControl(c controlMsg) {
	switch c.kind {
	case ctrlRemoveAll:
		s.la.RemoveAll()
	case ctrlRemovePort:
		s.la.RemovePort(c.port)
	case ctrlRemoveAddr:
		s.la.RemoveAddr(parseIP(c.addr))
	case ctrlAdd:
		for _, a := range c.addrs {
			s.la.AddAddr(c.port, parseIP(a))
		}
	case ctrlSetAttr:
		s.la.SetAttr(c.key, c.val)
	case ctrlRemoveAttr:
		s.la.RemoveAttr(c.key)
	}
	s.rebuildCachedResponse()
	if c.done != nil {
		close(c.done)
	}
}

func (s *Sender) rebuildCachedResponse() {
	packet, err := BuildResponsePacket(s.cfg, s.la)
	if err != nil {
		s.logger.Printf("sender: failed to build response: %v", err)
		s.cachedResponse = nil
		return
	}
	s.cachedResponse = packet
}

// cutoff returns ceil(τ·φ), floored at 1 so a misconfigured τ·φ < 1
// still suppresses after the first observed response rather than
// dividing by zero in the Phase-2 delay formula.
func (s *Sender) cutoff() int {
	c := s.cfg.Cutoff()
	if c < 1 {
		return 1
	}
	return c
}

func (s *Sender) enterQuiescent(ctx context.Context) {
	s.phase = phaseQuiescent
	s.epoch++
	epoch := s.epoch

	tau := s.cfg.Cadence
	width := time.Duration(float64(tau) * float64(s.swarmSize) / 10.0)
	var delay time.Duration
	if width > 0 {
		delay = tau + time.Duration(s.rng.Int63n(int64(width)))
	} else {
		delay = tau
	}
	s.scheduleTimeout(ctx, delay, epoch)
}

func (s *Sender) enterResponding(ctx context.Context, mode Family) {
	s.phase = phaseResponding
	s.mode = mode
	s.responseCount = 0
	s.epoch++
	epoch := s.epoch

	cutoff := s.cutoff()
	base := time.Duration(int64(responseDelayUnit) * int64(s.swarmSize) / int64(cutoff))

	if s.hasResponded {
		mult := s.swarmSize / cutoff
		if mult > 10 {
			mult = 10
		}
		s.extraDelay = responseDelayUnit * time.Duration(mult)
	} else {
		s.extraDelay -= responseDelayUnit
		if s.extraDelay < 0 {
			s.extraDelay = 0
		}
	}

	delay := base + s.extraDelay
	s.scheduleTimeout(ctx, delay, epoch)
}

// scheduleTimeout arms a single-shot timer tagged with epoch. Any timer
// armed by a previous phase is stopped first; Run additionally drops any
// timeoutMsg whose epoch doesn't match the current one, so a timer that
// fired in the race window right before Stop still has no effect.
func (s *Sender) scheduleTimeout(ctx context.Context, delay time.Duration, epoch int64) {
	if delay < 0 {
		delay = 0
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, func() {
		select {
		case s.timeoutCh <- timeoutMsg{epoch: epoch}:
		case <-ctx.Done():
		}
	})
}

func parseIP(s string) net.IP {
	return net.ParseIP(s)
}
