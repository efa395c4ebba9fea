package swarm

import (
	"context"
	"log"
	"time"
)

// gcIntervalMultiplier is the non-harmonic ratio applied to τ to derive
// the GC re-schedule interval (≈1.2346·τ), chosen so GC never locks step
// with the query cadence.
const gcIntervalMultiplier = 12345.0 / 9999.0

// Updater owns the PeerBook: it merges observed peers, invokes the user
// callback, garbage-collects stale peers, and publishes the book size to
// subscribers (the Sender, which scales its timing off swarm size).
type Updater struct {
	cfg      NodeConfig
	book     *PeerBook
	callback func(Peer)
	logger   *log.Logger
	nowFunc  func() time.Time

	obsCh      chan updaterObservation
	sizeSubs   []chan<- sizeUpdate
	gcInterval time.Duration
}

func newUpdater(cfg NodeConfig, callback func(Peer), logger *log.Logger) *Updater {
	return &Updater{
		cfg:        cfg,
		book:       NewPeerBook(),
		callback:   callback,
		logger:     logger,
		nowFunc:    time.Now,
		obsCh:      make(chan updaterObservation, 256),
		gcInterval: time.Duration(float64(cfg.Cadence) * gcIntervalMultiplier),
	}
}

// Subscribe registers a channel to receive book-size updates. Must be
// called before Run starts processing, per the design note breaking the
// Sender↔Updater reference cycle with an explicit subscription message.
func (u *Updater) Subscribe(ch chan<- sizeUpdate) {
	u.sizeSubs = append(u.sizeSubs, ch)
}

func (u *Updater) Run(ctx context.Context) {
	timer := time.NewTimer(u.gcInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case obs := <-u.obsCh:
			u.handleObservation(obs)
		case <-timer.C:
			u.runGC()
			timer.Reset(u.gcInterval)
		}
	}
}

func (u *Updater) handleObservation(obs updaterObservation) {
	for _, peer := range obs.peers {
		isNew := u.book.Upsert(peer)
		u.callback(peer)
		if isNew {
			u.notifySize()
		}
	}
}

// runGC computes the per-peer grace window from the expected aggregate
// reappearance frequency and removes anyone silent for at least that
// long, firing the tombstone callback exactly once per removal.
func (u *Updater) runGC() {
	if u.book.IsEmpty() {
		return
	}

	n := u.book.Size()
	cutoff := u.cfg.Cutoff()
	expectedResponders := cutoff
	if expectedResponders > n {
		expectedResponders = n
	}
	if expectedResponders < 1 {
		expectedResponders = 1
	}

	tau := u.cfg.Cadence.Seconds()
	f := float64(expectedResponders) / tau
	perPeerFreq := f / float64(n)
	graceSeconds := 3.0 / perPeerFreq
	grace := time.Duration(graceSeconds * float64(time.Second))

	now := u.nowFunc()
	expiredIDs := u.book.Expired(now, grace)
	for _, id := range expiredIDs {
		p, ok := u.book.Remove(id)
		if !ok {
			continue
		}
		u.callback(Tombstone(id, p.LastSeen))
	}

	u.notifySize()
}

func (u *Updater) notifySize() {
	update := sizeUpdate{size: u.book.Size()}
	for _, ch := range u.sizeSubs {
		select {
		case ch <- update:
		default:
			u.logger.Printf("updater: size subscriber channel full, dropping update")
		}
	}
}
