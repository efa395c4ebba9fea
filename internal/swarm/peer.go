package swarm

import (
	"sort"
	"time"
)

// Peer is an observed swarm member as delivered to the user callback and
// stored in the PeerBook.
type Peer struct {
	ID       string
	Addrs    []AddrPort
	Attrs    map[string]*string
	LastSeen time.Time
	Expired  bool
}

// sortAddrs orders a peer's address list so repeated observations of the
// same peer produce byte-identical snapshots.
func sortAddrs(addrs []AddrPort) []AddrPort {
	out := make([]AddrPort, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr != out[j].Addr {
			return out[i].Addr < out[j].Addr
		}
		return out[i].Port < out[j].Port
	})
	return out
}

// Tombstone returns the expiry snapshot delivered exactly once when a
// peer is garbage-collected: same id and last-seen time, empty address
// set and attributes.
func Tombstone(id string, lastSeen time.Time) Peer {
	return Peer{
		ID:       id,
		Addrs:    nil,
		Attrs:    nil,
		LastSeen: lastSeen,
		Expired:  true,
	}
}

// PeerBook is the Updater's authoritative id → Peer mapping. It is never
// touched by any goroutine but the Updater's; callers only ever see
// copies handed out through the callback or Size().
type PeerBook struct {
	peers map[string]Peer
	order []string
}

func NewPeerBook() *PeerBook {
	return &PeerBook{peers: make(map[string]Peer)}
}

// Upsert inserts or overwrites one peer. Returns true if this is a newly
// observed id (the Updater uses this to decide whether to notify size
// subscribers).
func (b *PeerBook) Upsert(p Peer) (isNew bool) {
	_, existed := b.peers[p.ID]
	if !existed {
		b.order = append(b.order, p.ID)
	}
	b.peers[p.ID] = p
	return !existed
}

// Remove deletes a peer by id. Returns the removed peer and whether it
// was present.
func (b *PeerBook) Remove(id string) (Peer, bool) {
	p, ok := b.peers[id]
	if !ok {
		return Peer{}, false
	}
	delete(b.peers, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Get returns a peer by id.
func (b *PeerBook) Get(id string) (Peer, bool) {
	p, ok := b.peers[id]
	return p, ok
}

// Size returns the current number of tracked peers.
func (b *PeerBook) Size() int {
	return len(b.peers)
}

// IsEmpty reports whether the book has no entries; the GC pass skips
// entirely when true.
func (b *PeerBook) IsEmpty() bool {
	return len(b.peers) == 0
}

// Snapshot returns every tracked peer in insertion order.
func (b *PeerBook) Snapshot() []Peer {
	out := make([]Peer, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.peers[id])
	}
	return out
}

// Expired returns the ids whose last_seen is at or beyond grace before
// now, for the GC pass to remove.
func (b *PeerBook) Expired(now time.Time, grace time.Duration) []string {
	var ids []string
	for _, id := range b.order {
		p := b.peers[id]
		if now.Sub(p.LastSeen) >= grace {
			ids = append(ids, id)
		}
	}
	return ids
}
