package swarm_test

import (
	goerrors "errors"
	"net"
	"sync"
	"testing"
	"time"

	swarm "github.com/lanswarm/swarmdns"
	"github.com/lanswarm/swarmdns/internal/errors"
)

// collector gathers Peer callbacks from one node under a mutex, since the
// callback fires from the node's own goroutine concurrently with the test
// body's assertions.
type collector struct {
	mu    sync.Mutex
	seen  map[string]swarm.Peer
	order []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string]swarm.Peer)}
}

func (c *collector) onPeer(p swarm.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.seen[p.ID] = p
}

func (c *collector) get(id string) (swarm.Peer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.seen[id]
	return p, ok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

// requireMulticastLoopback spawns a throwaway pair of nodes and confirms
// they hear each other before running the real scenario; a sandbox with no
// usable loopback multicast path would otherwise fail every scenario below
// for reasons unrelated to the code under test.
func requireMulticastLoopback(t *testing.T) {
	t.Helper()
	c := newCollector()
	probe, err := swarm.NewBuilder("probe-"+t.Name(), "probe-a", swarm.WithCadence(200*time.Millisecond)).Spawn(c.onPeer)
	if err != nil {
		t.Skipf("cannot spawn probe node: %v", err)
	}
	defer probe.Shutdown()

	other, err := swarm.NewBuilder("probe-"+t.Name(), "probe-b", swarm.WithCadence(200*time.Millisecond),
		swarm.WithAddr(1234, net.ParseIP("127.0.0.1"))).Spawn(func(swarm.Peer) {})
	if err != nil {
		t.Skipf("cannot spawn probe peer: %v", err)
	}
	defer other.Shutdown()

	if !waitFor(t, 2*time.Second, func() bool {
		_, ok := c.get("probe-b")
		return ok
	}) {
		t.Skip("no multicast loopback delivery observed in this environment")
	}
}

// TestScenarioTwoPeersBasic is S1: two peers on the same segment, each
// observing the other's address/port and TXT attributes within 5s.
func TestScenarioTwoPeersBasic(t *testing.T) {
	requireMulticastLoopback(t)

	bar := "bär"
	c1, c2 := newCollector(), newCollector()

	g1, err := swarm.NewBuilder("s1svc", "peer_id1",
		swarm.WithCadence(300*time.Millisecond),
		swarm.WithAddr(1235, net.ParseIP("127.0.0.1")),
		swarm.WithAttr("name", strptr("peer=peer_id2")),
		swarm.WithAttr("føø", &bar),
		swarm.WithAttr("bool", nil),
	).Spawn(c1.onPeer)
	if err != nil {
		t.Fatalf("Spawn peer_id1: %v", err)
	}
	defer g1.Shutdown()

	name2 := "peer=peer_id1"
	g2, err := swarm.NewBuilder("s1svc", "peer_id2",
		swarm.WithCadence(300*time.Millisecond),
		swarm.WithAddr(1236, net.ParseIP("127.0.0.1")),
		swarm.WithAttr("name", &name2),
		swarm.WithAttr("føø", &bar),
		swarm.WithAttr("bool", nil),
	).Spawn(c2.onPeer)
	if err != nil {
		t.Fatalf("Spawn peer_id2: %v", err)
	}
	defer g2.Shutdown()

	if !waitFor(t, 5*time.Second, func() bool {
		_, ok1 := c1.get("peer_id2")
		_, ok2 := c2.get("peer_id1")
		return ok1 && ok2
	}) {
		t.Fatal("peers did not mutually discover each other within 5s")
	}

	p2, _ := c1.get("peer_id2")
	if len(p2.Addrs) != 1 || p2.Addrs[0].Port != 1236 {
		t.Errorf("peer_id1's view of peer_id2.Addrs = %+v, want port 1236", p2.Addrs)
	}
	if got := p2.Attrs["føø"]; got == nil || *got != "bär" {
		t.Errorf("peer_id1's view of peer_id2 TXT føø = %v, want bär", got)
	}
	if v, ok := p2.Attrs["bool"]; !ok || v != nil {
		t.Errorf("peer_id1's view of peer_id2 TXT bool = %v, want present value-less flag", v)
	}
}

// TestScenarioChangeOfAddress is S2: a peer moves from one (addr, port) to
// another; the observer's view converges to exactly the new pair.
func TestScenarioChangeOfAddress(t *testing.T) {
	requireMulticastLoopback(t)

	observer := newCollector()
	obsGuard, err := swarm.NewBuilder("s2svc", "observer", swarm.WithCadence(300*time.Millisecond)).Spawn(observer.onPeer)
	if err != nil {
		t.Fatalf("Spawn observer: %v", err)
	}
	defer obsGuard.Shutdown()

	mover, err := swarm.NewBuilder("s2svc", "mover",
		swarm.WithCadence(300*time.Millisecond),
		swarm.WithAddr(8000, net.ParseIP("127.0.0.1")),
	).Spawn(func(swarm.Peer) {})
	if err != nil {
		t.Fatalf("Spawn mover: %v", err)
	}
	defer mover.Shutdown()

	if !waitFor(t, 5*time.Second, func() bool {
		p, ok := observer.get("mover")
		return ok && len(p.Addrs) == 1 && p.Addrs[0].Port == 8000
	}) {
		t.Fatal("observer never discovered mover's initial address")
	}

	mover.Add(9000, []net.IP{net.ParseIP("::1")})
	mover.RemovePort(8000)

	if !waitFor(t, 5*time.Second, func() bool {
		p, ok := observer.get("mover")
		if !ok || len(p.Addrs) != 1 {
			return false
		}
		return p.Addrs[0].Port == 9000 && net.ParseIP(p.Addrs[0].Addr).Equal(net.ParseIP("::1"))
	}) {
		p, _ := observer.get("mover")
		t.Fatalf("observer's view of mover = %+v, want exactly [(::1, 9000)]", p.Addrs)
	}
}

// TestScenarioGCExpiry is S4: killing a peer's node produces a tombstone
// callback at each survivor within a few multiples of the cadence.
func TestScenarioGCExpiry(t *testing.T) {
	requireMulticastLoopback(t)

	c1, c2 := newCollector(), newCollector()
	cadence := 250 * time.Millisecond

	g1, err := swarm.NewBuilder("s4svc", "peer0",
		swarm.WithCadence(cadence),
		swarm.WithAddr(100, net.ParseIP("127.0.0.1")),
	).Spawn(c1.onPeer)
	if err != nil {
		t.Fatalf("Spawn peer0: %v", err)
	}

	g2, err := swarm.NewBuilder("s4svc", "peer1",
		swarm.WithCadence(cadence),
		swarm.WithAddr(101, net.ParseIP("127.0.0.1")),
	).Spawn(c2.onPeer)
	if err != nil {
		t.Fatalf("Spawn peer1: %v", err)
	}
	defer g2.Shutdown()

	g3, err := swarm.NewBuilder("s4svc", "peer2",
		swarm.WithCadence(cadence),
		swarm.WithAddr(102, net.ParseIP("127.0.0.1")),
	).Spawn(func(swarm.Peer) {})
	if err != nil {
		t.Fatalf("Spawn peer2: %v", err)
	}
	defer g3.Shutdown()

	if !waitFor(t, 5*time.Second, func() bool {
		_, ok1 := c1.get("peer1")
		_, ok2 := c2.get("peer0")
		return ok1 && ok2
	}) {
		t.Fatal("peers did not converge before GC phase of the test")
	}

	g1.Shutdown()

	if !waitFor(t, 10*cadence, func() bool {
		p, ok := c2.get("peer0")
		return ok && p.Expired
	}) {
		t.Fatal("survivor never received a tombstone for the terminated peer")
	}
}

// TestScenarioInvalidAttribute is S6: attribute length validation, checked
// through the public WithAttr option. WithAttr validates at option-apply
// time and Builder.Spawn surfaces the stored error before touching the
// network, so this never needs a real socket.
func TestScenarioInvalidAttribute(t *testing.T) {
	longValue := make([]byte, 254)
	for i := range longValue {
		longValue[i] = 'x'
	}
	tooLong := string(longValue)
	okValue := string(longValue[:253])

	var valErr *errors.ValidationError

	_, err := swarm.NewBuilder("s6svc", "node", swarm.WithAttr("", strptr("v"))).Spawn(nil)
	if !goerrors.As(err, &valErr) {
		t.Errorf("empty key: Spawn() error = %v, want a *errors.ValidationError", err)
	}

	_, err = swarm.NewBuilder("s6svc", "node", swarm.WithAttr("k", &tooLong)).Spawn(nil)
	if !goerrors.As(err, &valErr) {
		t.Errorf("key+value of 255 bytes: Spawn() error = %v, want a *errors.ValidationError", err)
	}

	// 254 bytes is accepted by WithAttr; whether Spawn itself succeeds
	// depends on socket availability in the sandbox, which is not what
	// this scenario is checking — only that it's not rejected as invalid.
	_, err = swarm.NewBuilder("s6svc", "node", swarm.WithAttr("k", &okValue)).Spawn(nil)
	if goerrors.As(err, &valErr) {
		t.Errorf("key+value of 254 bytes: Spawn() error = %v, want it not rejected as a ValidationError", err)
	}
}

func strptr(s string) *string { return &s }
