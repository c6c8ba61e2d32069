// Package protocol defines the packet exchanged between clients, rooms, and
// the lobby, together with its compact JSON wire form.
//
// On the wire a packet is a three-element JSON array:
//
//	[description, command, body]
//
// where description is the bitwise OR of a source tag, a packet type, and a
// destination mask, command is a numeric command identifier, and body is an
// arbitrary JSON value (usually a positional array of fields).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPacket is returned by Unmarshal when the payload is not a
// well-formed packet. Callers treat it as a diagnostic, never as fatal.
var ErrMalformedPacket = errors.New("malformed packet")

// Description bits. A packet description carries exactly one source tag, one
// packet type, and any combination of destination bits.
const (
	TypeRequest      = 0x1
	TypeReply        = 0x2
	TypeNotification = 0x4

	SrcRoom   = 0x10
	SrcClient = 0x20
	SrcLobby  = 0x40

	DestRoom   = 0x100
	DestClient = 0x200
)

// Source identifies where a packet claims to originate. Dispatch in the
// message router is purely a function of this tag.
type Source int

const (
	SourceUnknown Source = 0
	SourceRoom    Source = SrcRoom
	SourceClient  Source = SrcClient
	SourceLobby   Source = SrcLobby
)

// String returns a human-readable name for the source tag.
func (s Source) String() string {
	switch s {
	case SourceRoom:
		return "room"
	case SourceClient:
		return "client"
	case SourceLobby:
		return "lobby"
	default:
		return "unknown"
	}
}

// Command is the numeric command identifier carried by a packet.
type Command int

// Commands used by the session layer. Values are part of the wire format and
// must not be renumbered.
const (
	CmdUnknown Command = iota
	CmdCheckVersion
	CmdSignup
	CmdEnterLobby
	CmdRoomList
	CmdWarn
	CmdSpeak
	CmdNetworkDelayTest
)

// String returns a human-readable name for the command.
func (c Command) String() string {
	switch c {
	case CmdCheckVersion:
		return "check-version"
	case CmdSignup:
		return "signup"
	case CmdEnterLobby:
		return "enter-lobby"
	case CmdRoomList:
		return "room-list"
	case CmdWarn:
		return "warn"
	case CmdSpeak:
		return "speak"
	case CmdNetworkDelayTest:
		return "network-delay-test"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Warning is a sub-code carried in the body of a CmdWarn packet.
type Warning int

const (
	WarnInvalidSignupString Warning = iota + 1
	WarnWrongPassword
)

// Service tags the first byte of a datagram on the discovery channel and
// selects a registered service handler.
type Service byte

const (
	// ServiceDetect asks the server to describe itself for LAN discovery.
	ServiceDetect Service = 1
)

// Packet is a decoded protocol message.
type Packet struct {
	Desc    int
	Command Command
	Body    any
}

// NewPacket creates a packet with the given description bits and command and
// no body.
//
// Parameters:
//   - desc: OR of source tag, packet type, and destination mask bits
//   - command: The command identifier
//
// Returns:
//   - A new Packet with a nil body
func NewPacket(desc int, command Command) *Packet {
	return &Packet{Desc: desc, Command: command}
}

// Source returns the packet's declared source tag.
func (p *Packet) Source() Source {
	switch {
	case p.Desc&SrcRoom != 0:
		return SourceRoom
	case p.Desc&SrcClient != 0:
		return SourceClient
	case p.Desc&SrcLobby != 0:
		return SourceLobby
	default:
		return SourceUnknown
	}
}

// Dest returns the packet's destination mask (DestRoom and DestClient bits).
func (p *Packet) Dest() int {
	return p.Desc & (DestRoom | DestClient)
}

// Marshal encodes the packet into its JSON array wire form.
//
// Returns:
//   - The encoded bytes, or an error if the body is not JSON-encodable
func (p *Packet) Marshal() ([]byte, error) {
	data, err := json.Marshal([3]any{p.Desc, int(p.Command), p.Body})
	if err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}

	return data, nil
}

// Unmarshal decodes a packet from its JSON array wire form. On any shape
// mismatch it returns ErrMalformedPacket and leaves the packet unchanged.
//
// Parameters:
//   - data: The raw message bytes
//
// Returns:
//   - ErrMalformedPacket if the bytes are not a valid packet
func (p *Packet) Unmarshal(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) != 3 {
		return ErrMalformedPacket
	}

	var desc, command int
	if err := json.Unmarshal(parts[0], &desc); err != nil {
		return ErrMalformedPacket
	}
	if err := json.Unmarshal(parts[1], &command); err != nil {
		return ErrMalformedPacket
	}

	var body any
	if err := json.Unmarshal(parts[2], &body); err != nil {
		return ErrMalformedPacket
	}

	p.Desc = desc
	p.Command = Command(command)
	p.Body = body
	return nil
}

// BodyFields returns the body as a positional field list. The second return
// value is false when the body is not an array.
//
// Returns:
//   - The body fields and true, or nil and false
func (p *Packet) BodyFields() ([]any, bool) {
	fields, ok := p.Body.([]any)
	return fields, ok
}

// StringAt returns the field at index i as a string, or "" when the index is
// out of range or the field is not a string.
//
// Parameters:
//   - fields: The positional field list
//   - i: The field index
//
// Returns:
//   - The string value, or "" if absent or mistyped
func StringAt(fields []any, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}

	s, _ := fields[i].(string)
	return s
}

// BoolAt returns the field at index i as a bool, or false when the index is
// out of range or the field is not a bool.
//
// Parameters:
//   - fields: The positional field list
//   - i: The field index
//
// Returns:
//   - The bool value, or false if absent or mistyped
func BoolAt(fields []any, i int) bool {
	if i < 0 || i >= len(fields) {
		return false
	}

	b, _ := fields[i].(bool)
	return b
}
