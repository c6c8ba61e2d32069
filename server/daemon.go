package server

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/protocol"
)

// serviceFunc handles one datagram on the discovery channel. The first byte
// of the datagram selected the function; data is the remainder.
type serviceFunc func(data []byte, from *net.UDPAddr, conn *net.UDPConn)

// ServerStatus is the discovery reply describing this server. It reads the
// shared room and lobby state but never mutates it.
type ServerStatus struct {
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	Version  string `json:"version"`
	Players  int    `json:"players"`
	Rooms    int    `json:"rooms"`
	Password bool   `json:"password"`
}

// Daemon is the UDP LAN-discovery responder. Datagrams are dispatched by
// their single-byte service tag through the table built in New.
type Daemon struct {
	conn   *net.UDPConn
	log    logger.Logger
	closed atomic.Bool
}

// ServeDiscovery binds the discovery responder to addr and starts answering
// datagrams in a goroutine.
//
// Parameters:
//   - addr: The "host:port" UDP address to bind
//
// Returns:
//   - The running Daemon, or an error if the bind failed
func (s *Server) ServeDiscovery(addr string) (*Daemon, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve discovery addr: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind discovery addr: %w", err)
	}

	d := &Daemon{conn: conn, log: s.log}
	go d.loop(s)

	s.log.Info("discovery daemon started", logger.Field{Key: "addr", Value: addr})
	return d, nil
}

// Close stops the daemon. Safe to call multiple times.
func (d *Daemon) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	return d.conn.Close()
}

// loop reads datagrams and dispatches them by service tag.
func (d *Daemon) loop(s *Server) {
	buf := make([]byte, 512)
	for {
		n, from, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if d.closed.Load() {
				return
			}

			d.log.Debug("discovery read error", logger.Field{Key: "error", Value: err})
			continue
		}

		if n < 1 {
			continue
		}

		fn, ok := s.services[protocol.Service(buf[0])]
		if !ok {
			continue
		}

		fn(buf[1:n], from, d.conn)
	}
}

// serviceDetect answers a detect request with this server's status.
func (s *Server) serviceDetect(_ []byte, from *net.UDPAddr, conn *net.UDPConn) {
	status := ServerStatus{
		Name:     s.cfg.ServerName,
		Mode:     s.cfg.Mode,
		Version:  s.cfg.Version,
		Players:  s.PlayerCount(),
		Rooms:    s.rooms.Len(),
		Password: s.cfg.RoomPassword != "",
	}

	data, err := json.Marshal(status)
	if err != nil {
		return
	}

	if _, err := conn.WriteToUDP(data, from); err != nil {
		s.log.Debug("discovery reply failed",
			logger.Field{Key: "to", Value: from.String()},
			logger.Field{Key: "error", Value: err})
	}
}
