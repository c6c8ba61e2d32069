package room

import (
	"fmt"
	"sync"

	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
)

// GameHandler receives packets from room members once they are signed up.
// The game-rule engine registers itself here; the room only routes.
type GameHandler func(p *Player, pkt *protocol.Packet)

// Options configure a new room.
type Options struct {
	Name     string
	Capacity int
	GameMode string
}

// RoomInfo is a snapshot of a room for lobby display.
type RoomInfo struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	GameMode string `json:"game_mode"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
}

// Room owns a set of member players up to a fixed capacity. A finished room
// stays in memory (members may still be inspected) but is never selected for
// new signups and refuses reconnection. All methods are safe for concurrent
// use.
type Room struct {
	id   uint32
	opts Options
	log  logger.Logger

	mu       sync.RWMutex
	members  map[string]*Player
	finished bool

	gameMu sync.RWMutex
	game   GameHandler
}

// New creates an empty room.
//
// Parameters:
//   - id: The room identifier assigned by the directory
//   - opts: Room configuration
//   - log: Logger for room events
//
// Returns:
//   - The new Room
func New(id uint32, opts Options, log logger.Logger) *Room {
	return &Room{
		id:      id,
		opts:    opts,
		log:     log.With(logger.Field{Key: "room", Value: id}),
		members: make(map[string]*Player),
	}
}

// ID returns the room identifier.
func (r *Room) ID() uint32 {
	return r.id
}

// Name returns the room's display name.
func (r *Room) Name() string {
	return r.opts.Name
}

// SetGameHandler installs the handler that receives member packets. Intended
// to be called once by the game-rule engine before play starts.
//
// Parameters:
//   - h: The handler for member packets
func (r *Room) SetGameHandler(h GameHandler) {
	r.gameMu.Lock()
	defer r.gameMu.Unlock()
	r.game = h
}

// AddSocket creates a player for the given session and adds it to the member
// set. The session's messages are routed to the room from this point on, and
// a close hook marks the player offline when the session drops.
//
// Callers must serialize AddSocket against capacity checks; the room itself
// does not reject members beyond capacity.
//
// Parameters:
//   - sess: The session joining the room
//
// Returns:
//   - The new member Player
func (r *Room) AddSocket(sess netx.Session) *Player {
	p := NewPlayer(sess)
	p.setRoom(r)

	r.mu.Lock()
	r.members[p.ObjectName()] = p
	r.mu.Unlock()

	r.attach(p, sess)
	return p
}

// Signup finalizes a member's identity and activates it.
//
// Parameters:
//   - p: The member created by AddSocket
//   - screenName: The player's visible name
//   - avatar: The player's avatar reference
//   - isBot: Whether the member is a bot seat
func (r *Room) Signup(p *Player, screenName, avatar string, isBot bool) {
	p.signup(screenName, avatar, isBot)
	r.log.Info("player signed up",
		logger.Field{Key: "player", Value: screenName},
		logger.Field{Key: "object", Value: p.ObjectName()})
}

// Reconnect rebinds an offline member to a new session and reactivates it.
//
// Parameters:
//   - p: The offline member
//   - sess: The replacement session
func (r *Room) Reconnect(p *Player, sess netx.Session) {
	p.bindSession(sess)
	r.attach(p, sess)
	r.log.Info("player reconnected",
		logger.Field{Key: "player", Value: p.ScreenName()},
		logger.Field{Key: "object", Value: p.ObjectName()})
}

// IsFull reports whether the member count has reached capacity.
func (r *Room) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) >= r.opts.Capacity
}

// IsFinished reports whether the room's game has finished.
func (r *Room) IsFinished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finished
}

// Finish marks the room finished. A finished room is no longer selectable
// for signups and rejects reconnection.
func (r *Room) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns a snapshot of the member set.
func (r *Room) Members() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Player, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p)
	}

	return out
}

// Broadcast sends the packet to every member with a live session.
// Delivery is best effort; a failed send to one member does not block the
// others.
//
// Parameters:
//   - pkt: The packet to distribute
func (r *Room) Broadcast(pkt *protocol.Packet) {
	data, err := pkt.Marshal()
	if err != nil {
		r.log.Error("broadcast encode failed", logger.Field{Key: "error", Value: err})
		return
	}

	for _, p := range r.Members() {
		sess := p.Session()
		if sess == nil {
			continue
		}

		if err := sess.Send(data); err != nil {
			r.log.Debug("broadcast send failed",
				logger.Field{Key: "player", Value: p.ScreenName()},
				logger.Field{Key: "error", Value: err})
		}
	}
}

// Info returns a snapshot of the room for lobby display.
func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := r.opts.Name
	if name == "" {
		name = fmt.Sprintf("Room #%d", r.id)
	}

	return RoomInfo{
		ID:       r.id,
		Name:     name,
		GameMode: r.opts.GameMode,
		Players:  len(r.members),
		Capacity: r.opts.Capacity,
	}
}

// attach wires a member session to the room: inbound messages go to the game
// handler and a drop of the session flips the member offline.
func (r *Room) attach(p *Player, sess netx.Session) {
	sess.SetHandler(func(s netx.Session, data []byte) {
		var pkt protocol.Packet
		if err := pkt.Unmarshal(data); err != nil {
			r.log.Warn("invalid message from member",
				logger.Field{Key: "peer", Value: s.Peer()},
				logger.Field{Key: "error", Value: err})
			return
		}

		r.receive(p, &pkt)
	})

	sess.AddCloseHook(func(s netx.Session) {
		// A stale hook from a session replaced by reconnection must not
		// knock the player offline again.
		if cur := p.Session(); cur == nil || cur.ID() != s.ID() {
			return
		}

		p.markOffline()
		r.log.Info("player went offline",
			logger.Field{Key: "player", Value: p.ScreenName()},
			logger.Field{Key: "object", Value: p.ObjectName()})
	})
}

// receive routes a member packet to the game handler, dropping it when no
// handler is installed.
func (r *Room) receive(p *Player, pkt *protocol.Packet) {
	r.gameMu.RLock()
	h := r.game
	r.gameMu.RUnlock()

	if h == nil {
		r.log.Debug("no game handler, packet dropped",
			logger.Field{Key: "command", Value: pkt.Command.String()})
		return
	}

	h(p, pkt)
}
