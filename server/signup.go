package server

import (
	"fmt"

	"github.com/cardhall/gameserver/config"
	"github.com/cardhall/gameserver/lobby"
	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/protocol"
	"github.com/cardhall/gameserver/room"
)

// handleSignup turns a client-sourced packet into a player. The session's
// message hook is detached first, so a session gets exactly one signup
// attempt no matter how many packets it managed to queue.
//
// Incomplete bodies and empty names abort silently without touching the
// session, matching the legacy client contract; such a session simply never
// becomes a player.
func (s *Server) handleSignup(sess netx.Session, pkt *protocol.Packet) {
	sess.SetHandler(nil)

	if pkt.Command != protocol.CmdSignup {
		s.log.Warn(fmt.Sprintf("%s invalid signup string", sess.Peer()),
			logger.Field{Key: "command", Value: pkt.Command.String()})
		s.emit(EventDiagnostic, sess.Peer(), "", "invalid signup string")
		s.notifyClient(sess, protocol.CmdWarn, protocol.WarnInvalidSignupString)
		_ = sess.Close()
		return
	}

	fields, ok := pkt.BodyFields()
	if !ok || len(fields) < 3 {
		return
	}

	isReconnection := protocol.BoolAt(fields, 0)
	screenName := protocol.StringAt(fields, 1)
	avatar := protocol.StringAt(fields, 2)
	if screenName == "" || avatar == "" {
		return
	}

	if isReconnection && s.tryReconnect(sess, screenName) {
		return
	}

	if s.cfg.Mode == config.ModeRoom {
		s.signupRoom(sess, screenName, avatar, fields)
	} else {
		s.signupLobby(sess, screenName, avatar)
	}
}

// tryReconnect rebinds the session to the first presence candidate that is
// offline inside an unfinished room. Later candidates for the same screen
// name are not considered.
//
// Returns:
//   - true if a player was reconnected
func (s *Server) tryReconnect(sess netx.Session, screenName string) bool {
	for _, objectName := range s.presence.Candidates(screenName) {
		p, ok := s.players.Load(objectName)
		if !ok {
			continue
		}

		r := p.Room()
		if p.State() != room.StateOffline || r == nil || r.IsFinished() {
			continue
		}

		r.Reconnect(p, sess)
		s.log.Info(fmt.Sprintf("%s reconnected as %s", sess.Peer(), screenName),
			logger.Field{Key: "object", Value: objectName})
		return true
	}

	return false
}

// signupRoom places a fresh player into the current room, creating a new
// room when the current one is absent, full, or finished. The critical
// section makes pick-or-create atomic across racing signups.
func (s *Server) signupRoom(sess netx.Session, screenName, avatar string, fields []any) {
	if s.cfg.RoomPassword != "" {
		if protocol.StringAt(fields, 3) != s.cfg.RoomPassword {
			s.notifyClient(sess, protocol.CmdWarn, protocol.WarnWrongPassword)
			return
		}
	}

	s.signupMu.Lock()
	r := s.rooms.SelectOrCreate()
	p := r.AddSocket(sess)
	r.Signup(p, screenName, avatar, false)
	s.signupMu.Unlock()

	s.players.Store(p.ObjectName(), p)
	s.presence.Register(screenName, p.ObjectName())

	s.emit(EventPlayerJoined, sess.Peer(), screenName, "")
	s.log.Info(fmt.Sprintf("%s joined room %d as %s", sess.Peer(), r.ID(), screenName))
}

// signupLobby constructs a lobby player around the session and sends it the
// current room list.
func (s *Server) signupLobby(sess netx.Session, screenName, avatar string) {
	s.notifyClient(sess, protocol.CmdEnterLobby, nil)

	p := lobby.NewPlayer(sess)
	p.SetScreenName(screenName)
	p.SetAvatar(avatar)
	p.OnError(func(msg string) { s.log.Warn(msg) })
	p.OnDisconnect(s.removeLobbyPlayer)

	s.lobbyMu.Lock()
	s.lobbyPlayers = append(s.lobbyPlayers, p)
	s.lobbyMu.Unlock()

	s.emit(EventPlayerJoined, sess.Peer(), screenName, "")
	s.log.Info(fmt.Sprintf("%s logged in as Player %s", sess.Peer(), screenName))

	_ = p.Notify(protocol.CmdRoomList, s.roomList())
}

// removeLobbyPlayer drops a player from the lobby roster when its session
// closes.
func (s *Server) removeLobbyPlayer(p *lobby.Player) {
	s.lobbyMu.Lock()
	for i, lp := range s.lobbyPlayers {
		if lp == p {
			s.lobbyPlayers = append(s.lobbyPlayers[:i], s.lobbyPlayers[i+1:]...)
			break
		}
	}
	s.lobbyMu.Unlock()

	s.emit(EventPlayerLeft, p.Peer(), p.ScreenName(), "")
	s.log.Info(fmt.Sprintf("Player %s disconnected", p.ScreenName()))
}
