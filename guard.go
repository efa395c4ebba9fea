package swarm

import (
	"net"

	iswarm "github.com/lanswarm/swarmdns/internal/swarm"
)

// Guard is the live handle to a spawned node. Every mutating method
// enqueues a control message to the node's Sender actor and returns
// without waiting for it to take effect, except SetTXT, which validates
// synchronously before enqueueing so callers learn about an oversized
// attribute immediately rather than via a dropped background event.
type Guard struct {
	g *iswarm.Guardian
}

// Add advertises port on every address in addrs. Safe to call
// repeatedly; already-advertised pairs are left unchanged.
func (guard *Guard) Add(port uint16, addrs []net.IP) {
	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = a.String()
	}
	guard.g.Control(iswarm.NewAddControl(port, strs))
}

// RemovePort stops advertising every address under port.
func (guard *Guard) RemovePort(port uint16) {
	guard.g.Control(iswarm.NewRemovePortControl(port))
}

// RemoveAddr stops advertising addr on every port it was advertised on.
func (guard *Guard) RemoveAddr(addr net.IP) {
	guard.g.Control(iswarm.NewRemoveAddrControl(addr.String()))
}

// RemoveAll stops advertising every address.
func (guard *Guard) RemoveAll() {
	guard.g.Control(iswarm.NewRemoveAllControl())
}

// SetTXT sets or clears a TXT attribute. value == nil advertises a bare
// flag with no `=value`. Returns a validation error synchronously if
// key+value would exceed the 254-byte wire budget; the control message
// is not enqueued in that case.
func (guard *Guard) SetTXT(key string, value *string) error {
	if err := iswarm.ValidateAttr(key, value); err != nil {
		return err
	}
	guard.g.Control(iswarm.NewSetAttrControl(key, value))
	return nil
}

// RemoveTXT removes a TXT attribute by key.
func (guard *Guard) RemoveTXT(key string) {
	guard.g.Control(iswarm.NewRemoveAttrControl(key))
}

// Shutdown stops every actor and releases the node's sockets. It blocks
// until teardown completes.
func (guard *Guard) Shutdown() {
	guard.g.Shutdown()
}
