package lobby

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
)

// fakeSession is a minimal in-memory netx.Session for lobby tests.
type fakeSession struct {
	id uint32

	mu     sync.Mutex
	sent   [][]byte
	hooks  []netx.CloseHook
	closed bool
}

func (f *fakeSession) ID() uint32       { return f.id }
func (f *fakeSession) Peer() string     { return "10.0.0.1:5000" }
func (f *fakeSession) PeerHost() string { return "10.0.0.1" }

func (f *fakeSession) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("session closed")
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSession) SetHandler(netx.Handler) {}

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
	f.mu.Unlock()

	for _, h := range hooks {
		h(f)
	}
	return nil
}

func TestPlayer_Identity(t *testing.T) {
	p := NewPlayer(&fakeSession{id: 1})
	p.SetScreenName("Alice")
	p.SetAvatar("avatar1")

	assert.Equal(t, "Alice", p.ScreenName())
	assert.Equal(t, "avatar1", p.Avatar())
	assert.Equal(t, "10.0.0.1:5000", p.Peer())
}

func TestPlayer_NotifySendsLobbySourcedPacket(t *testing.T) {
	sess := &fakeSession{id: 1}
	p := NewPlayer(sess)

	require.NoError(t, p.Notify(protocol.CmdEnterLobby, nil))

	require.Len(t, sess.sent, 1)
	var pkt protocol.Packet
	require.NoError(t, pkt.Unmarshal(sess.sent[0]))
	assert.Equal(t, protocol.SourceLobby, pkt.Source())
	assert.Equal(t, protocol.DestClient, pkt.Dest())
	assert.Equal(t, protocol.CmdEnterLobby, pkt.Command)
}

func TestPlayer_DisconnectCallback(t *testing.T) {
	sess := &fakeSession{id: 1}
	p := NewPlayer(sess)

	var gone *Player
	p.OnDisconnect(func(pl *Player) { gone = pl })

	require.NoError(t, sess.Close())
	assert.Same(t, p, gone)

	t.Run("second close does not fire again", func(t *testing.T) {
		gone = nil
		require.NoError(t, sess.Close())
		assert.Nil(t, gone)
	})
}

func TestPlayer_ErrorCallbackOnFailedSend(t *testing.T) {
	sess := &fakeSession{id: 1}
	p := NewPlayer(sess)
	p.SetScreenName("Alice")

	var errMsg string
	p.OnError(func(msg string) { errMsg = msg })

	require.NoError(t, sess.Close())
	err := p.Notify(protocol.CmdSpeak, []any{".", "hi"})
	assert.Error(t, err)
	assert.Contains(t, errMsg, "Alice")
}
