// Package server implements the session layer of the card game server: it
// admits connections, routes packets by their source tag, turns signups into
// room or lobby players, reconnects players who dropped, and fans
// notifications out by destination mask.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardhall/gameserver/banlist"
	"github.com/cardhall/gameserver/config"
	"github.com/cardhall/gameserver/lobby"
	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/presence"
	"github.com/cardhall/gameserver/protocol"
	"github.com/cardhall/gameserver/room"
	"github.com/cardhall/gameserver/safemap"
	"github.com/cardhall/gameserver/safeset"
)

// admissionTimeout bounds the ban list lookup on the accept path.
const admissionTimeout = 2 * time.Second

// eventBuffer is the observer channel capacity; overflow is dropped.
const eventBuffer = 256

// RoomPacketHandler receives packets tagged with the room source, sent by
// remote room servers connected to a lobby server.
type RoomPacketHandler func(sess netx.Session, pkt *protocol.Packet)

// RoomListProvider supplies the room list snapshot sent to a fresh lobby
// player.
type RoomListProvider func() []room.RoomInfo

// lobbyHandlerFunc handles one command from the lobby-authority connection.
type lobbyHandlerFunc func(pkt *protocol.Packet)

// relay bridges a session to a remote room without a full player object.
type relay struct {
	sess   netx.Session
	roomID uint32
}

// Server is the session layer core. One Server instance is shared by every
// connection goroutine; all exported methods are safe for concurrent use.
type Server struct {
	cfg  *config.Config
	log  logger.Logger
	bans banlist.Banlist

	addresses *safeset.SafeSet[string]
	presence  *presence.Registry
	rooms     *room.Directory
	players   *safemap.SafeMap[string, *room.Player]
	relays    *safemap.SafeMap[uint32, relay]

	lobbyMu      sync.RWMutex
	lobbyPlayers []*lobby.Player
	lobbySess    netx.Session

	// signupMu serializes "pick or create the current room" across
	// concurrently arriving signups. Nothing network-blocking runs under it.
	signupMu sync.Mutex

	roomPackets  RoomPacketHandler
	roomList     RoomListProvider
	lobbyQueries map[protocol.Command]lobbyHandlerFunc
	services     map[protocol.Service]serviceFunc

	events chan Event
}

// New creates a Server for the given configuration. The dispatch tables are
// built here, before any connection is accepted, and never mutated after.
//
// Parameters:
//   - cfg: The validated server configuration
//   - log: Logger for server events
//   - bans: The ban list consulted on every accept
//
// Returns:
//   - The new Server
func New(cfg *config.Config, log logger.Logger, bans banlist.Banlist) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		bans:      bans,
		addresses: safeset.NewSafeSet[string](),
		presence:  presence.NewRegistry(),
		players:   safemap.NewSafeMap[string, *room.Player](),
		relays:    safemap.NewSafeMap[uint32, relay](),
		events:    make(chan Event, eventBuffer),
	}

	s.rooms = room.NewDirectory(func(id uint32) *room.Room {
		return room.New(id, room.Options{
			Name:     cfg.RoomName,
			Capacity: cfg.RoomCapacity,
			GameMode: cfg.GameMode,
		}, log)
	})

	s.roomList = s.rooms.List
	s.lobbyQueries = map[protocol.Command]lobbyHandlerFunc{
		protocol.CmdSpeak: s.lobbySpeak,
	}
	s.services = map[protocol.Service]serviceFunc{
		protocol.ServiceDetect: s.serviceDetect,
	}

	return s
}

// Rooms returns the room directory.
func (s *Server) Rooms() *room.Directory {
	return s.rooms
}

// Presence returns the presence registry.
func (s *Server) Presence() *presence.Registry {
	return s.presence
}

// SetRoomPacketHandler installs the collaborator that consumes room-sourced
// packets. Intended to be called once during startup.
func (s *Server) SetRoomPacketHandler(h RoomPacketHandler) {
	s.roomPackets = h
}

// SetRoomListProvider replaces the source of the room list snapshot sent to
// fresh lobby players. Defaults to the server's own room directory.
func (s *Server) SetRoomListProvider(p RoomListProvider) {
	s.roomList = p
}

// SetLobbySession marks sess as the distinguished lobby-authority
// connection. Packets with the lobby source tag are accepted from this
// session only.
func (s *Server) SetLobbySession(sess netx.Session) {
	s.lobbyMu.Lock()
	defer s.lobbyMu.Unlock()
	s.lobbySess = sess
}

// OnAccept applies admission policy to a newly established session and, when
// admitted, registers its address, attaches the disconnect cleanup hook,
// sends the version-check challenge, and wires inbound messages to the
// router.
//
// Parameters:
//   - sess: The newly accepted session
func (s *Server) OnAccept(sess netx.Session) {
	host := sess.PeerHost()

	if s.cfg.ForbidSameIP && s.addresses.Contains(host) {
		s.reject(sess, "duplicate address")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), admissionTimeout)
	defer cancel()

	banned, err := s.bans.IsBanned(ctx, host)
	if err != nil {
		// Fail open: an unreachable ban backend must not lock everyone out.
		s.log.Warn("ban lookup failed", logger.Field{Key: "addr", Value: host}, logger.Field{Key: "error", Value: err})
		banned = false
	}
	if banned {
		s.reject(sess, "banned address")
		return
	}

	if s.cfg.ForbidSameIP {
		s.addresses.Add(host)
	}

	sess.AddCloseHook(func(closed netx.Session) {
		if s.cfg.ForbidSameIP {
			s.addresses.Remove(host)
		}

		s.log.Debug("session closed",
			logger.Field{Key: "session", Value: closed.ID()},
			logger.Field{Key: "peer", Value: closed.Peer()})
	})

	s.notifyClient(sess, protocol.CmdCheckVersion, s.cfg.Version)
	sess.SetHandler(s.OnMessage)

	s.log.Info(fmt.Sprintf("%s connected", sess.Peer()))
}

// OnMessage decodes one raw message from a session and dispatches it by its
// declared source tag. Decoding failure is non-fatal: the message is dropped
// with a diagnostic and the session stays open.
//
// Parameters:
//   - sess: The session the message arrived on
//   - raw: The message bytes
func (s *Server) OnMessage(sess netx.Session, raw []byte) {
	var pkt protocol.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		s.log.Warn(fmt.Sprintf("%s invalid message %s", sess.Peer(), raw))
		s.emit(EventDiagnostic, sess.Peer(), "", fmt.Sprintf("invalid message %q", raw))
		return
	}

	switch pkt.Source() {
	case protocol.SourceClient:
		s.handleSignup(sess, &pkt)
	case protocol.SourceRoom:
		s.handleRoomPacket(sess, &pkt)
	case protocol.SourceLobby:
		if s.isLobbySession(sess) {
			s.handleLobbyPacket(&pkt)
		} else {
			s.log.Warn("lobby packet from non-lobby session, ignored",
				logger.Field{Key: "peer", Value: sess.Peer()},
				logger.Field{Key: "command", Value: pkt.Command.String()})
		}
	default:
		s.log.Warn(fmt.Sprintf("%s packet %s with an unknown source is discarded", sess.Peer(), raw))
		s.emit(EventDiagnostic, sess.Peer(), "", "unknown packet source")
	}
}

// RegisterRoomRelay tracks a session that bridges to a remote room's socket
// without a full player object. Relays receive every room-destined
// broadcast until their session closes.
//
// Parameters:
//   - sess: The bridging session
//   - roomID: The remote room the session bridges to
func (s *Server) RegisterRoomRelay(sess netx.Session, roomID uint32) {
	s.relays.Store(sess.ID(), relay{sess: sess, roomID: roomID})
	sess.AddCloseHook(func(closed netx.Session) {
		s.relays.Delete(closed.ID())
	})
}

// RemoveRoom drops a room from the directory in response to an external
// finalize signal, releasing its members from the player and presence
// indexes.
//
// Parameters:
//   - id: The room id to remove
func (s *Server) RemoveRoom(id uint32) {
	r := s.rooms.Remove(id)
	if r == nil {
		return
	}

	for _, p := range r.Members() {
		p.SetState(room.StateDisconnected)
		s.players.Delete(p.ObjectName())
		s.presence.Unregister(p.ScreenName(), p.ObjectName())
	}

	s.log.Info("room removed", logger.Field{Key: "room", Value: id})
}

// PlayerCount returns the number of players currently known to the server:
// the lobby roster plus every room's member count.
func (s *Server) PlayerCount() int {
	s.lobbyMu.RLock()
	n := len(s.lobbyPlayers)
	s.lobbyMu.RUnlock()

	for _, r := range s.rooms.Rooms() {
		n += r.Len()
	}

	return n
}

// LobbyPlayers returns a snapshot of the lobby roster.
func (s *Server) LobbyPlayers() []*lobby.Player {
	s.lobbyMu.RLock()
	defer s.lobbyMu.RUnlock()

	out := make([]*lobby.Player, len(s.lobbyPlayers))
	copy(out, s.lobbyPlayers)
	return out
}

// AddressCount returns the size of the connected-address set. Only
// meaningful when the duplicate-IP policy is enabled.
func (s *Server) AddressCount() int {
	return s.addresses.Size()
}

// reject closes a session refused by admission policy. No player object
// exists at this point.
func (s *Server) reject(sess netx.Session, reason string) {
	s.log.Info(fmt.Sprintf("forbid the connection of address %s", sess.PeerHost()),
		logger.Field{Key: "reason", Value: reason})
	s.emit(EventConnRejected, sess.Peer(), "", reason)
	_ = sess.Close()
}

// notifyClient sends a lobby-sourced notification to a single session.
func (s *Server) notifyClient(sess netx.Session, command protocol.Command, body any) {
	pkt := protocol.NewPacket(protocol.SrcLobby|protocol.TypeNotification|protocol.DestClient, command)
	pkt.Body = body

	data, err := pkt.Marshal()
	if err != nil {
		s.log.Error("encode notification failed", logger.Field{Key: "error", Value: err})
		return
	}

	if err := sess.Send(data); err != nil {
		s.log.Debug("notify failed",
			logger.Field{Key: "peer", Value: sess.Peer()},
			logger.Field{Key: "error", Value: err})
	}
}

// isLobbySession reports whether sess is the lobby-authority connection.
func (s *Server) isLobbySession(sess netx.Session) bool {
	s.lobbyMu.RLock()
	defer s.lobbyMu.RUnlock()
	return s.lobbySess != nil && s.lobbySess.ID() == sess.ID()
}

// handleRoomPacket forwards a room-sourced packet to the registered
// collaborator.
func (s *Server) handleRoomPacket(sess netx.Session, pkt *protocol.Packet) {
	if s.roomPackets == nil {
		s.log.Debug("room packet with no handler, dropped",
			logger.Field{Key: "peer", Value: sess.Peer()},
			logger.Field{Key: "command", Value: pkt.Command.String()})
		return
	}

	s.roomPackets(sess, pkt)
}

// handleLobbyPacket dispatches a packet from the lobby authority through the
// table built in New.
func (s *Server) handleLobbyPacket(pkt *protocol.Packet) {
	h, ok := s.lobbyQueries[pkt.Command]
	if !ok {
		s.log.Debug("unhandled lobby command", logger.Field{Key: "command", Value: pkt.Command.String()})
		return
	}

	h(pkt)
}

// lobbySpeak relays a chat line from the lobby authority to everyone.
func (s *Server) lobbySpeak(pkt *protocol.Packet) {
	fields, ok := pkt.BodyFields()
	if !ok {
		return
	}

	if msg := protocol.StringAt(fields, 1); msg != "" {
		s.BroadcastSystemMessage(msg)
	}
}
