// Package netx provides the TCP transport for the session layer: a listening
// server that accepts connections and a per-connection Session with
// length-prefix message framing.
package netx

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cardhall/gameserver/logger"
)

// MaxFrameSize is the largest message payload a session will read. A frame
// header announcing more than this closes the connection.
const MaxFrameSize = 1 << 20

// Handler processes one inbound message from a session. Messages from a
// single session are delivered sequentially in arrival order; handlers for
// different sessions run concurrently.
type Handler func(s Session, data []byte)

// CloseHook runs when a session is closed, from any cause. Hooks run exactly
// once per session, in registration order.
type CloseHook func(s Session)

// Session is a live client connection. A Session is created by the Server on
// accept and handed to the application via the OnAccept callback; after that
// the application controls its message handler and close hooks.
type Session interface {
	// ID returns the session's unique identifier assigned by the server.
	ID() uint32

	// Peer returns the remote "host:port" address.
	Peer() string

	// PeerHost returns only the remote host portion of the address.
	PeerHost() string

	// Send writes one framed message to the connection. Safe for concurrent
	// use by multiple goroutines.
	Send(data []byte) error

	// SetHandler replaces the inbound message handler. A nil handler detaches
	// message delivery; subsequently received messages are dropped.
	SetHandler(h Handler)

	// AddCloseHook registers a hook to run when the session closes. Hooks
	// run exactly once regardless of which path triggered the close.
	AddCloseHook(h CloseHook)

	// Close closes the session and runs its close hooks. It is safe to call
	// multiple times; only the first call has any effect.
	Close() error
}

// TCPSession is the net.Conn-backed Session implementation.
type TCPSession struct {
	id      uint32
	conn    net.Conn
	log     logger.Logger
	handler atomic.Value // Handler

	writeMu sync.Mutex

	hookMu sync.Mutex
	hooks  []CloseHook

	closed atomic.Bool
}

// NewSession wraps a net.Conn in a Session with the given id. The caller is
// responsible for starting the read loop via Serve.
//
// Parameters:
//   - id: The session identifier
//   - conn: The accepted connection
//   - log: Logger for transport diagnostics
//
// Returns:
//   - The new session
func NewSession(id uint32, conn net.Conn, log logger.Logger) *TCPSession {
	s := &TCPSession{
		id:   id,
		conn: conn,
		log:  log,
	}
	s.handler.Store(Handler(nil))
	return s
}

// ID implements Session.
func (s *TCPSession) ID() uint32 {
	return s.id
}

// Peer implements Session.
func (s *TCPSession) Peer() string {
	return s.conn.RemoteAddr().String()
}

// PeerHost implements Session.
func (s *TCPSession) PeerHost() string {
	host, _, err := net.SplitHostPort(s.Peer())
	if err != nil {
		return s.Peer()
	}

	return host
}

// Send implements Session. Each message is written as a 4-byte little-endian
// length prefix followed by the payload.
func (s *TCPSession) Send(data []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("session %d is closed", s.id)
	}

	if len(data) > MaxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit", len(data))
	}

	frame := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("session %d write: %w", s.id, err)
	}

	return nil
}

// SetHandler implements Session.
func (s *TCPSession) SetHandler(h Handler) {
	s.handler.Store(h)
}

// AddCloseHook implements Session.
func (s *TCPSession) AddCloseHook(h CloseHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Close implements Session. The first call closes the connection and runs
// every registered close hook; later calls are no-ops.
func (s *TCPSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.conn.Close()

	s.hookMu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.hookMu.Unlock()

	for _, h := range hooks {
		h(s)
	}

	return err
}

// Serve runs the session read loop until the connection closes or a framing
// error occurs. It delivers each complete message to the current handler;
// when the handler is nil the message is dropped.
func (s *TCPSession) Serve() {
	defer func() { _ = s.Close() }()

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(s.conn, header); err != nil {
			if err != io.EOF && !s.closed.Load() {
				s.log.Debug("session read ended", logger.Field{Key: "session", Value: s.id}, logger.Field{Key: "error", Value: err})
			}
			return
		}

		size := binary.LittleEndian.Uint32(header)
		if size > MaxFrameSize {
			s.log.Warn("oversized frame, closing session",
				logger.Field{Key: "session", Value: s.id},
				logger.Field{Key: "size", Value: size})
			return
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return
		}

		if h, ok := s.handler.Load().(Handler); ok && h != nil {
			h(s, payload)
		}
	}
}
