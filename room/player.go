// Package room implements game rooms and their players for the session
// layer: membership, capacity, reconnection, and room-internal broadcast.
// Game rules run elsewhere; packets destined for the rule engine are handed
// to an injected handler.
package room

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
)

// State is a player's lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateOffline
	StateDisconnected
)

// String returns the lifecycle state name used in logs and room snapshots.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateOffline:
		return "offline"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Player is a room member. It is keyed by a unique object name, distinct
// from the screen name which may be shared between players. A Player keeps a
// reference to its owning room; the room's member set always contains the
// player while that reference is set.
type Player struct {
	objectName string

	mu         sync.RWMutex
	screenName string
	avatar     string
	state      State
	isBot      bool
	sess       netx.Session
	room       *Room
}

// NewPlayer creates a player in the connecting state bound to the given
// session. The object name is a fresh UUID.
//
// Parameters:
//   - sess: The player's transport session, may be nil for bots
//
// Returns:
//   - The new Player
func NewPlayer(sess netx.Session) *Player {
	return &Player{
		objectName: uuid.NewString(),
		state:      StateConnecting,
		sess:       sess,
	}
}

// ObjectName returns the player's unique internal identifier.
func (p *Player) ObjectName() string {
	return p.objectName
}

// ScreenName returns the player's visible name.
func (p *Player) ScreenName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screenName
}

// Avatar returns the player's avatar reference.
func (p *Player) Avatar() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avatar
}

// State returns the player's lifecycle state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetState sets the player's lifecycle state.
//
// Parameters:
//   - s: The new state
func (p *Player) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// IsBot reports whether the player is a bot seat with no session.
func (p *Player) IsBot() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isBot
}

// Session returns the player's current transport session, or nil.
func (p *Player) Session() netx.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sess
}

// Room returns the player's owning room, or nil for a player not yet in a
// room.
func (p *Player) Room() *Room {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.room
}

// Notify sends a room-sourced notification to the player's client. It is a
// no-op for bots and offline players.
//
// Parameters:
//   - command: The notification command
//   - body: The notification payload
//
// Returns:
//   - An error if the send failed
func (p *Player) Notify(command protocol.Command, body any) error {
	sess := p.Session()
	if sess == nil {
		return nil
	}

	pkt := protocol.NewPacket(protocol.SrcRoom|protocol.TypeNotification|protocol.DestClient, command)
	pkt.Body = body

	data, err := pkt.Marshal()
	if err != nil {
		return err
	}

	return sess.Send(data)
}

// signup fills in the player's identity and activates it.
func (p *Player) signup(screenName, avatar string, isBot bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenName = screenName
	p.avatar = avatar
	p.isBot = isBot
	p.state = StateActive
}

// bindSession replaces the player's session, used on reconnection.
func (p *Player) bindSession(sess netx.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sess = sess
	p.state = StateActive
}

// setRoom records the owning room.
func (p *Player) setRoom(r *Room) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = r
}

// markOffline flips an active player to offline when its session drops. A
// player already disconnected stays disconnected.
func (p *Player) markOffline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisconnected {
		return
	}

	p.state = StateOffline
	p.sess = nil
}
