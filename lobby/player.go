// Package lobby implements the lobby-side player: a named wrapper around a
// client session that can be notified of lobby events and reports its own
// error and disconnect conditions through registered callbacks.
package lobby

import (
	"fmt"
	"sync"

	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
)

// Player is a client signed up into the lobby rather than into a room. Safe
// for concurrent use.
type Player struct {
	sess netx.Session

	mu         sync.RWMutex
	screenName string
	avatar     string

	onError      func(msg string)
	onDisconnect func(p *Player)
}

// NewPlayer wraps a session in a lobby player. The player's disconnect
// callback, once registered, fires when the session closes.
//
// Parameters:
//   - sess: The client session
//
// Returns:
//   - The new Player
func NewPlayer(sess netx.Session) *Player {
	p := &Player{sess: sess}
	sess.AddCloseHook(func(netx.Session) {
		p.mu.RLock()
		cb := p.onDisconnect
		p.mu.RUnlock()

		if cb != nil {
			cb(p)
		}
	})

	return p
}

// SetScreenName sets the player's visible name.
func (p *Player) SetScreenName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenName = name
}

// ScreenName returns the player's visible name.
func (p *Player) ScreenName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screenName
}

// SetAvatar sets the player's avatar reference.
func (p *Player) SetAvatar(avatar string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.avatar = avatar
}

// Avatar returns the player's avatar reference.
func (p *Player) Avatar() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avatar
}

// Peer returns the remote address of the player's session.
func (p *Player) Peer() string {
	return p.sess.Peer()
}

// Session returns the underlying session.
func (p *Player) Session() netx.Session {
	return p.sess
}

// OnError registers the callback invoked with a human-readable message when
// a send to this player fails.
//
// Parameters:
//   - cb: The error callback
func (p *Player) OnError(cb func(msg string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = cb
}

// OnDisconnect registers the callback invoked when the player's session
// closes.
//
// Parameters:
//   - cb: The disconnect callback
func (p *Player) OnDisconnect(cb func(p *Player)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDisconnect = cb
}

// Notify sends a lobby-sourced notification to the player's client.
//
// Parameters:
//   - command: The notification command
//   - body: The notification payload
//
// Returns:
//   - An error if encoding or sending failed
func (p *Player) Notify(command protocol.Command, body any) error {
	pkt := protocol.NewPacket(protocol.SrcLobby|protocol.TypeNotification|protocol.DestClient, command)
	pkt.Body = body

	data, err := pkt.Marshal()
	if err != nil {
		return err
	}

	return p.Unicast(data)
}

// Unicast sends pre-encoded packet bytes to the player's client, reporting
// failures through the error callback.
//
// Parameters:
//   - data: The encoded packet
//
// Returns:
//   - An error if the send failed
func (p *Player) Unicast(data []byte) error {
	if err := p.sess.Send(data); err != nil {
		p.mu.RLock()
		cb := p.onError
		p.mu.RUnlock()

		if cb != nil {
			cb(fmt.Sprintf("send to %s failed: %v", p.ScreenName(), err))
		}

		return err
	}

	return nil
}
