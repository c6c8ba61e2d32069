package room

import (
	"fmt"
	"net"
	"sync"

	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
)

// fakeSession is an in-memory netx.Session for tests. Sent frames are
// recorded; Deliver feeds a message through the current handler the way the
// read loop would.
type fakeSession struct {
	id   uint32
	peer string

	mu      sync.Mutex
	sent    [][]byte
	handler netx.Handler
	hooks   []netx.CloseHook
	closed  bool
}

func newFakeSession(id uint32, peer string) *fakeSession {
	return &fakeSession{id: id, peer: peer}
}

func (f *fakeSession) ID() uint32 { return f.id }

func (f *fakeSession) Peer() string { return f.peer }

func (f *fakeSession) PeerHost() string {
	host, _, err := net.SplitHostPort(f.peer)
	if err != nil {
		return f.peer
	}
	return host
}

func (f *fakeSession) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("session %d is closed", f.id)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSession) SetHandler(h netx.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeSession) AddCloseHook(h netx.CloseHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, h)
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()

	for _, h := range hooks {
		h(f)
	}
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// deliver routes data through the session's current handler.
func (f *fakeSession) deliver(data []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h(f, data)
	}
}

// sentPackets decodes every frame recorded so far.
func (f *fakeSession) sentPackets() []*protocol.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*protocol.Packet, 0, len(f.sent))
	for _, data := range f.sent {
		var pkt protocol.Packet
		if err := pkt.Unmarshal(data); err == nil {
			out = append(out, &pkt)
		}
	}
	return out
}
