package swarm

import (
	"net"
	"testing"
	"time"
)

func testConfig() NodeConfig {
	return NodeConfig{ServiceName: "myapp", PeerID: "me", Proto: ProtoUDP, Cadence: time.Second, ResponseRate: 1}
}

func TestClassifyDatagramQuery(t *testing.T) {
	cfg := testConfig()
	packet, err := BuildQueryPacket(cfg)
	if err != nil {
		t.Fatalf("BuildQueryPacket() error = %v", err)
	}

	q, resp := classifyDatagram(cfg, packet, FamilyV4, time.Now())
	if resp != nil {
		t.Error("classifyDatagram on a query produced a responseEvent")
	}
	if q == nil || q.family != FamilyV4 {
		t.Fatalf("classifyDatagram on a query = %+v, want queryEvent{family: FamilyV4}", q)
	}
}

func TestClassifyDatagramResponse(t *testing.T) {
	responder := NodeConfig{ServiceName: "myapp", PeerID: "peer-1", Proto: ProtoUDP, Cadence: time.Second, ResponseRate: 1}
	la := NewLocalAdvertisement()
	la.AddAddr(8080, net.ParseIP("10.0.0.9"))
	val := "v1"
	la.SetAttr("version", &val)

	packet, err := BuildResponsePacket(responder, la)
	if err != nil {
		t.Fatalf("BuildResponsePacket() error = %v", err)
	}

	observer := testConfig() // same ServiceName/Proto, different PeerID
	q, resp := classifyDatagram(observer, packet, FamilyV4, time.Now())
	if q != nil {
		t.Error("classifyDatagram on a response produced a queryEvent")
	}
	if resp == nil {
		t.Fatal("classifyDatagram on a response returned nil responseEvent")
	}

	p, ok := resp.peers["peer-1"]
	if !ok {
		t.Fatalf("responseEvent.peers missing peer-1: %+v", resp.peers)
	}
	if len(p.Addrs) != 1 || p.Addrs[0].Addr != "10.0.0.9" || p.Addrs[0].Port != 8080 {
		t.Errorf("peer-1 addrs = %+v, want [{10.0.0.9 8080}]", p.Addrs)
	}
	if p.Attrs["version"] == nil || *p.Attrs["version"] != "v1" {
		t.Errorf("peer-1 attrs = %+v, want version=v1", p.Attrs)
	}
}

func TestClassifyResponseIgnoresOtherServices(t *testing.T) {
	other := NodeConfig{ServiceName: "otherapp", PeerID: "peer-1", Proto: ProtoUDP, Cadence: time.Second, ResponseRate: 1}
	la := NewLocalAdvertisement()
	la.AddAddr(1234, net.ParseIP("10.0.0.1"))

	packet, err := BuildResponsePacket(other, la)
	if err != nil {
		t.Fatalf("BuildResponsePacket() error = %v", err)
	}

	observer := testConfig()
	_, resp := classifyDatagram(observer, packet, FamilyV4, time.Now())
	if resp != nil {
		t.Errorf("classifyDatagram matched a response for an unrelated service: %+v", resp)
	}
}

func TestPeerIDFromInstanceNameWithDots(t *testing.T) {
	cfg := testConfig()
	name := "node.with.dots._myapp._udp.local."
	id, ok := peerIDFromInstanceName(cfg, name)
	if !ok || id != "node.with.dots" {
		t.Errorf("peerIDFromInstanceName(%q) = (%q, %v), want (\"node.with.dots\", true)", name, id, ok)
	}

	if _, ok := peerIDFromInstanceName(cfg, "unrelated.local."); ok {
		t.Error("peerIDFromInstanceName matched an unrelated name")
	}
}

func TestClassifyDatagramMalformed(t *testing.T) {
	cfg := testConfig()
	q, resp := classifyDatagram(cfg, []byte{0x01, 0x02}, FamilyV4, time.Now())
	if q != nil || resp != nil {
		t.Errorf("classifyDatagram on malformed input = (%v, %v), want (nil, nil)", q, resp)
	}
}
