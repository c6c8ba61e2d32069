package netx

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/safemap"
)

// AcceptFunc is called for every accepted connection before its read loop
// starts. The application uses it to apply admission policy and wire the
// session's message handler and close hooks. It may close the session to
// reject the connection.
type AcceptFunc func(s Session)

// Server is a TCP server that accepts connections and wraps each one in a
// Session. Sessions are stored by ID and removed automatically when they
// close. The server runs its accept loop in a goroutine and supports
// graceful stop.
type Server struct {
	Logger   logger.Logger
	Name     string
	Addr     string
	Listener net.Listener
	Sessions *safemap.SafeMap[uint32, Session]
	Running  atomic.Bool
	OnAccept AcceptFunc

	nextID atomic.Uint32
}

// NewServer creates a Server that will listen on addr and hand every
// accepted session to onAccept.
//
// Parameters:
//   - name: Server name used in log entries
//   - addr: The "host:port" to listen on
//   - log: Logger for server events
//   - onAccept: Callback invoked for each accepted session
//
// Returns:
//   - The new Server, not yet started
func NewServer(name, addr string, log logger.Logger, onAccept AcceptFunc) *Server {
	return &Server{
		Logger:   log,
		Name:     name,
		Addr:     addr,
		Sessions: safemap.NewSafeMap[uint32, Session](),
		OnAccept: onAccept,
	}
}

// Start starts the server by binding to Addr and beginning the accept loop
// in a goroutine. It is safe to call only when the server is not already
// running.
//
// Returns:
//   - An error if the server is already running or if listening on Addr fails
func (s *Server) Start() error {
	if s.Running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Running.Store(true)

	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: s.Addr})
	go s.AcceptLoop()

	return nil
}

// Stop stops the server: it sets Running to false, closes the listener, and
// closes all active sessions. Safe to call when the server is not running.
func (s *Server) Stop() {
	if !s.Running.Load() {
		s.Logger.Info(fmt.Sprintf("%s server not running", s.Name))
		return
	}

	s.Running.Store(false)
	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	s.Sessions.Range(func(id uint32, session Session) bool {
		_ = session.Close()
		return true
	})

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// AcceptLoop runs in a goroutine and accepts incoming connections. For each
// connection it assigns the next session ID, registers the session, invokes
// OnAccept, and then runs the session read loop in a new goroutine. It exits
// when the server is stopped.
func (s *Server) AcceptLoop() {
	for s.Running.Load() {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Field{Key: "error", Value: err})
			continue
		}

		id := s.nextID.Add(1)
		session := NewSession(id, conn, s.Logger)
		session.AddCloseHook(func(sess Session) {
			s.Sessions.Delete(sess.ID())
		})
		s.Sessions.Store(id, session)

		if s.OnAccept != nil {
			s.OnAccept(session)
		}

		go session.Serve()
	}
}
