package swarm

// Family identifies which bound socket produced or should carry an
// event — the Sender remembers which family triggered Phase 2 so its
// eventual response goes out on the same socket the query arrived on.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
	FamilyAny
)

// inboundEvent is what a Receiver forwards to the Sender after
// classifying one datagram.
type inboundEvent struct {
	query    *queryEvent
	response *responseEvent
}

type queryEvent struct {
	family Family
}

type responseEvent struct {
	peers map[string]Peer
}

// controlMsg is one mutation of LocalAdvertisement, relayed by the
// Guardian from the public Guard to the Sender, which is the sole owner
// of LocalAdvertisement.
type controlMsg struct {
	kind  controlKind
	port  uint16
	addr  string
	addrs []string
	key   string
	val   *string
	done  chan struct{}
}

type controlKind int

const (
	ctrlRemoveAll controlKind = iota
	ctrlRemovePort
	ctrlRemoveAddr
	ctrlAdd
	ctrlSetAttr
	ctrlRemoveAttr
)

// ControlMsg is the exported name for controlMsg, letting the root
// package build one via the constructors below without reaching into
// unexported fields.
type ControlMsg = controlMsg

// NewAddControl advertises port on every address in addrs.
func NewAddControl(port uint16, addrs []string) ControlMsg {
	return controlMsg{kind: ctrlAdd, port: port, addrs: addrs}
}

// NewRemovePortControl stops advertising every address under port.
func NewRemovePortControl(port uint16) ControlMsg {
	return controlMsg{kind: ctrlRemovePort, port: port}
}

// NewRemoveAddrControl stops advertising addr on every port.
func NewRemoveAddrControl(addr string) ControlMsg {
	return controlMsg{kind: ctrlRemoveAddr, addr: addr}
}

// NewRemoveAllControl stops advertising every address.
func NewRemoveAllControl() ControlMsg {
	return controlMsg{kind: ctrlRemoveAll}
}

// NewSetAttrControl sets or clears a TXT attribute.
func NewSetAttrControl(key string, val *string) ControlMsg {
	return controlMsg{kind: ctrlSetAttr, key: key, val: val}
}

// NewRemoveAttrControl removes a TXT attribute by key.
func NewRemoveAttrControl(key string) ControlMsg {
	return controlMsg{kind: ctrlRemoveAttr, key: key}
}

// sizeUpdate carries the current PeerBook size from the Updater to the
// Sender, which uses it to scale Phase-1/Phase-2 timing.
type sizeUpdate struct {
	size int
}

// updaterObservation is what the Sender forwards to the Updater whenever
// it receives a Response event — it is the same peer map, just handed
// to the component that owns the PeerBook.
type updaterObservation struct {
	peers map[string]Peer
}
