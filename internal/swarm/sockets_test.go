package swarm

import (
	"context"
	"errors"
	"testing"

	"github.com/lanswarm/swarmdns/internal/transport"
)

func withOpenSeams(t *testing.T, v4 func() (transport.Transport, error), v6 func() (transport.Transport, error)) {
	t.Helper()
	origV4, origV6 := openV4, openV6
	openV4, openV6 = v4, v6
	t.Cleanup(func() { openV4, openV6 = origV4, origV6 })
}

func okOpener(tr transport.Transport) func() (transport.Transport, error) {
	return func() (transport.Transport, error) { return tr, nil }
}

func failOpener() func() (transport.Transport, error) {
	return func() (transport.Transport, error) { return nil, errors.New("bind failed") }
}

func TestOpenSocketsAutoSucceedsWithOneFamily(t *testing.T) {
	withOpenSeams(t, okOpener(transport.NewMockTransport()), failOpener())

	s, err := OpenSockets(IPClassAuto)
	if err != nil {
		t.Fatalf("OpenSockets(auto) error = %v, want nil", err)
	}
	if s.V4 == nil || s.V6 != nil {
		t.Errorf("OpenSockets(auto) = {V4:%v V6:%v}, want V4 bound, V6 nil", s.V4, s.V6)
	}
}

func TestOpenSocketsAutoFailsWhenNeitherBinds(t *testing.T) {
	withOpenSeams(t, failOpener(), failOpener())

	if _, err := OpenSockets(IPClassAuto); err == nil {
		t.Error("OpenSockets(auto) = nil error, want CannotBind")
	}
}

func TestOpenSocketsV4OnlyRequiresV4(t *testing.T) {
	withOpenSeams(t, failOpener(), okOpener(transport.NewMockTransport()))

	if _, err := OpenSockets(IPClassV4Only); err == nil {
		t.Error("OpenSockets(v4only) with failing v4 = nil error, want CannotBind")
	}
}

// closeRecorder wraps a MockTransport and records whether Close was called.
type closeRecorder struct {
	*transport.MockTransport
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.MockTransport.Close()
}

func TestOpenSocketsBothRequiredClosesPartialSuccess(t *testing.T) {
	v4 := &closeRecorder{MockTransport: transport.NewMockTransport()}
	withOpenSeams(t, okOpener(v4), failOpener())

	if _, err := OpenSockets(IPClassBothRequired); err == nil {
		t.Fatal("OpenSockets(bothRequired) with failing v6 = nil error, want CannotBind")
	}
	if !v4.closed {
		t.Error("OpenSockets(bothRequired) left the bound v4 transport open")
	}
}

func TestSocketsSendPrefersV4(t *testing.T) {
	v4 := transport.NewMockTransport()
	v6 := transport.NewMockTransport()
	s := &Sockets{V4: v4, V6: v6}

	if err := s.Send(context.Background(), []byte("x"), FamilyAny); err != nil {
		t.Fatalf("Send(FamilyAny) error = %v", err)
	}
	if len(v4.SendCalls()) != 1 || len(v6.SendCalls()) != 0 {
		t.Error("Send(FamilyAny) did not prefer the v4 transport")
	}

	if err := s.Send(context.Background(), []byte("x"), FamilyV6); err != nil {
		t.Fatalf("Send(FamilyV6) error = %v", err)
	}
	if len(v6.SendCalls()) != 1 {
		t.Error("Send(FamilyV6) did not use the v6 transport")
	}
}
