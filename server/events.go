package server

import "time"

// EventKind classifies an observer event.
type EventKind int

const (
	// EventPlayerJoined fires when a signup produces a new player, in a room
	// or in the lobby.
	EventPlayerJoined EventKind = iota
	// EventPlayerLeft fires when a lobby player's session closes.
	EventPlayerLeft
	// EventConnRejected fires when admission policy closes a connection.
	EventConnRejected
	// EventDiagnostic fires for dropped packets: malformed bytes, unknown
	// sources, and invalid signup strings.
	EventDiagnostic
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventPlayerJoined:
		return "player-joined"
	case EventPlayerLeft:
		return "player-left"
	case EventConnRejected:
		return "conn-rejected"
	case EventDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Event is a typed observer notification. Subscribers (logging, metrics,
// lifecycle managers) consume events asynchronously; the emitting path never
// blocks on them.
type Event struct {
	Kind    EventKind
	Peer    string
	Name    string
	Message string
	Time    time.Time
}

// Events returns the observer channel. When no consumer keeps up, events are
// dropped rather than blocking connection handling.
func (s *Server) Events() <-chan Event {
	return s.events
}

// emit publishes an event without blocking.
func (s *Server) emit(kind EventKind, peer, name, message string) {
	e := Event{Kind: kind, Peer: peer, Name: name, Message: message, Time: time.Now()}
	select {
	case s.events <- e:
	default:
	}
}
