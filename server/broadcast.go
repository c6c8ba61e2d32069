package server

import (
	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/protocol"
)

// Broadcast sends the packet to the recipients implied by its destination
// mask: every lobby player for the client bit, every room relay session and
// every room's internal broadcast for the room bit. Delivery is best effort
// per recipient.
//
// Parameters:
//   - pkt: The packet to distribute
func (s *Server) Broadcast(pkt *protocol.Packet) {
	data, err := pkt.Marshal()
	if err != nil {
		s.log.Error("broadcast encode failed", logger.Field{Key: "error", Value: err})
		return
	}

	dest := pkt.Dest()

	if dest&protocol.DestClient != 0 {
		for _, p := range s.LobbyPlayers() {
			_ = p.Unicast(data)
		}
	}

	if dest&protocol.DestRoom != 0 {
		s.relays.Range(func(id uint32, rl relay) bool {
			if err := rl.sess.Send(data); err != nil {
				s.log.Debug("relay send failed",
					logger.Field{Key: "session", Value: id},
					logger.Field{Key: "error", Value: err})
			}

			return true
		})

		for _, r := range s.rooms.Rooms() {
			r.Broadcast(pkt)
		}
	}
}

// BroadcastSystemMessage sends a system chat line to every lobby and room
// client.
//
// Parameters:
//   - message: The text to send
func (s *Server) BroadcastSystemMessage(message string) {
	pkt := protocol.NewPacket(
		protocol.SrcLobby|protocol.TypeNotification|protocol.DestClient|protocol.DestRoom,
		protocol.CmdSpeak)
	pkt.Body = []any{".", message}
	s.Broadcast(pkt)
}

// BroadcastNotification sends a typed notification with an arbitrary payload
// to the given destination mask.
//
// Parameters:
//   - command: The notification command
//   - body: The notification payload
//   - dest: Destination mask (DestClient and/or DestRoom bits)
func (s *Server) BroadcastNotification(command protocol.Command, body any, dest int) {
	pkt := protocol.NewPacket(protocol.SrcLobby|protocol.TypeNotification|dest, command)
	pkt.Body = body
	s.Broadcast(pkt)
}
