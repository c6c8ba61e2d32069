package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardhall/gameserver/config"
	"github.com/cardhall/gameserver/protocol"
	"github.com/cardhall/gameserver/room"
)

func TestSignup_RoomMode(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeRoom))
	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)
	drainEvents(s)

	sess.deliver(signupBody(t, false, "Alice", "avatar1"))

	events := drainEvents(s)
	require.Equal(t, 1, countEvents(events, EventPlayerJoined))

	rooms := s.Rooms().Rooms()
	require.Len(t, rooms, 1)
	members := rooms[0].Members()
	require.Len(t, members, 1)
	assert.Equal(t, "Alice", members[0].ScreenName())
	assert.Equal(t, room.StateActive, members[0].State())
	assert.Equal(t, []string{members[0].ObjectName()}, s.Presence().Candidates("Alice"))
}

func TestSignup_InvalidCommandWarnsAndCloses(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeRoom))
	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)

	pkt := protocol.NewPacket(protocol.SrcClient|protocol.TypeRequest|protocol.DestRoom, protocol.CmdSpeak)
	data, err := pkt.Marshal()
	require.NoError(t, err)
	sess.deliver(data)

	assert.True(t, sess.isClosed())
	pkts := sess.sentPackets()
	require.NotEmpty(t, pkts)
	last := pkts[len(pkts)-1]
	assert.Equal(t, protocol.CmdWarn, last.Command)
	assert.Equal(t, float64(protocol.WarnInvalidSignupString), last.Body)
	assert.Equal(t, 0, s.PlayerCount())
}

func TestSignup_IncompleteBodyIsSilentNoop(t *testing.T) {
	cases := []struct {
		name   string
		fields []any
	}{
		{"too few fields", []any{false, "Alice"}},
		{"empty screen name", []any{false, "", "avatar1"}},
		{"empty avatar", []any{false, "Alice", ""}},
		{"non-array body", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(config.ModeRoom))
			sess := newFakeSession(1, "10.0.0.1:5000")
			s.OnAccept(sess)
			sentBefore := len(sess.sentPackets())
			drainEvents(s)

			if tc.fields == nil {
				pkt := protocol.NewPacket(protocol.SrcClient|protocol.TypeRequest|protocol.DestRoom, protocol.CmdSignup)
				pkt.Body = "not an array"
				data, err := pkt.Marshal()
				require.NoError(t, err)
				sess.deliver(data)
			} else {
				sess.deliver(signupBody(t, tc.fields...))
			}

			assert.False(t, sess.isClosed())
			assert.Len(t, sess.sentPackets(), sentBefore)
			assert.Equal(t, 0, s.PlayerCount())
			assert.Empty(t, drainEvents(s))
		})
	}
}

func TestSignup_WrongPassword(t *testing.T) {
	cfg := testConfig(config.ModeRoom)
	cfg.RoomPassword = "sesame"
	s := newTestServer(t, cfg)

	t.Run("wrong password warns and creates nothing", func(t *testing.T) {
		sess := newFakeSession(1, "10.0.0.1:5000")
		s.OnAccept(sess)
		drainEvents(s)

		sess.deliver(signupBody(t, false, "Alice", "avatar1", "wrongpw"))

		assert.False(t, sess.isClosed())
		assert.Equal(t, protocol.CmdWarn, sess.lastCommand())
		pkts := sess.sentPackets()
		assert.Equal(t, float64(protocol.WarnWrongPassword), pkts[len(pkts)-1].Body)
		assert.Equal(t, 0, s.PlayerCount())
		assert.Equal(t, 0, s.Rooms().Len())
		assert.Equal(t, 0, countEvents(drainEvents(s), EventPlayerJoined))
	})

	t.Run("missing password counts as wrong", func(t *testing.T) {
		sess := newFakeSession(2, "10.0.0.2:5000")
		s.OnAccept(sess)

		sess.deliver(signupBody(t, false, "Bob", "avatar2"))
		assert.Equal(t, protocol.CmdWarn, sess.lastCommand())
		assert.Equal(t, 0, s.PlayerCount())
	})

	t.Run("correct password signs up", func(t *testing.T) {
		sess := newFakeSession(3, "10.0.0.3:5000")
		s.OnAccept(sess)

		sess.deliver(signupBody(t, false, "Carol", "avatar3", "sesame"))
		assert.Equal(t, 1, s.PlayerCount())
	})
}

func TestSignup_OneAttemptPerSession(t *testing.T) {
	cfg := testConfig(config.ModeRoom)
	cfg.RoomPassword = "sesame"
	s := newTestServer(t, cfg)

	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)

	// First attempt fails on the password; the message hook is already
	// detached, so a corrected retry on the same session goes nowhere.
	sess.deliver(signupBody(t, false, "Alice", "avatar1", "wrongpw"))
	sess.deliver(signupBody(t, false, "Alice", "avatar1", "sesame"))

	assert.Equal(t, 0, s.PlayerCount())
}

func TestSignup_ConcurrentRace(t *testing.T) {
	t.Run("exactly one room for a capacity-sized burst", func(t *testing.T) {
		cfg := testConfig(config.ModeRoom)
		cfg.RoomCapacity = 4
		s := newTestServer(t, cfg)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				sess := newFakeSession(uint32(n+1), fmt.Sprintf("10.0.1.%d:5000", n))
				s.OnAccept(sess)
				sess.deliver(signupBody(t, false, fmt.Sprintf("Player%d", n), "avatar"))
			}(i)
		}
		wg.Wait()

		rooms := s.Rooms().Rooms()
		require.Len(t, rooms, 1)
		assert.Equal(t, 4, rooms[0].Len())
	})

	t.Run("capacity is never exceeded under overflow", func(t *testing.T) {
		cfg := testConfig(config.ModeRoom)
		cfg.RoomCapacity = 4
		s := newTestServer(t, cfg)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				sess := newFakeSession(uint32(n+1), fmt.Sprintf("10.0.2.%d:5000", n))
				s.OnAccept(sess)
				sess.deliver(signupBody(t, false, fmt.Sprintf("Player%d", n), "avatar"))
			}(i)
		}
		wg.Wait()

		total := 0
		for _, r := range s.Rooms().Rooms() {
			assert.LessOrEqual(t, r.Len(), 4)
			total += r.Len()
		}
		assert.Equal(t, 10, total)
		assert.Equal(t, 3, s.Rooms().Len())
	})
}

func TestSignup_Reconnection(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeRoom))

	first := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(first)
	first.deliver(signupBody(t, false, "Alice", "avatar1"))

	rooms := s.Rooms().Rooms()
	require.Len(t, rooms, 1)
	p := rooms[0].Members()[0]

	require.NoError(t, first.Close())
	require.Equal(t, room.StateOffline, p.State())

	t.Run("reconnect flag rebinds the offline player", func(t *testing.T) {
		second := newFakeSession(2, "10.0.0.1:6000")
		s.OnAccept(second)
		second.deliver(signupBody(t, true, "Alice", "avatar1"))

		assert.Equal(t, room.StateActive, p.State())
		require.NotNil(t, p.Session())
		assert.Equal(t, uint32(2), p.Session().ID())
		assert.Equal(t, 1, s.Rooms().Len())
		assert.Equal(t, 1, rooms[0].Len())
	})

	t.Run("only the first offline candidate is touched", func(t *testing.T) {
		// Second player with the same screen name, also knocked offline.
		other := newFakeSession(3, "10.0.0.3:5000")
		s.OnAccept(other)
		other.deliver(signupBody(t, false, "Alice", "avatar1"))
		require.NoError(t, p.Session().(*fakeSession).Close())
		require.NoError(t, other.Close())

		twin := rooms[0].Members()
		var q *room.Player
		for _, m := range twin {
			if m != p {
				q = m
			}
		}
		require.NotNil(t, q)
		require.Equal(t, room.StateOffline, p.State())
		require.Equal(t, room.StateOffline, q.State())

		back := newFakeSession(4, "10.0.0.4:5000")
		s.OnAccept(back)
		back.deliver(signupBody(t, true, "Alice", "avatar1"))

		// Presence order puts p first; q stays untouched.
		assert.Equal(t, room.StateActive, p.State())
		assert.Equal(t, room.StateOffline, q.State())
	})
}

func TestSignup_ReconnectFlagFallsThroughToFreshSignup(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeRoom))

	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)
	drainEvents(s)

	// Nobody to reconnect to; the flag falls through to a fresh signup with
	// the same name.
	sess.deliver(signupBody(t, true, "Alice", "avatar1"))

	assert.Equal(t, 1, s.PlayerCount())
	assert.Equal(t, 1, countEvents(drainEvents(s), EventPlayerJoined))
}

func TestSignup_ReconnectSkipsFinishedRoom(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeRoom))

	first := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(first)
	first.deliver(signupBody(t, false, "Alice", "avatar1"))
	r := s.Rooms().Rooms()[0]
	require.NoError(t, first.Close())

	r.Finish()

	second := newFakeSession(2, "10.0.0.1:6000")
	s.OnAccept(second)
	second.deliver(signupBody(t, true, "Alice", "avatar1"))

	// The finished room is not reconnectable; a fresh room is created.
	assert.Equal(t, 2, s.Rooms().Len())
}

func TestSignup_LobbyMode(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeLobby))
	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)
	drainEvents(s)

	sess.deliver(signupBody(t, false, "Alice", "avatar1"))

	players := s.LobbyPlayers()
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].ScreenName())
	assert.Equal(t, "avatar1", players[0].Avatar())
	assert.Equal(t, 1, countEvents(drainEvents(s), EventPlayerJoined))

	var commands []protocol.Command
	for _, pkt := range sess.sentPackets() {
		commands = append(commands, pkt.Command)
	}
	assert.Equal(t, []protocol.Command{protocol.CmdEnterLobby, protocol.CmdRoomList}, commands)

	t.Run("disconnect removes the player from the roster", func(t *testing.T) {
		require.NoError(t, sess.Close())
		assert.Empty(t, s.LobbyPlayers())
		assert.Equal(t, 1, countEvents(drainEvents(s), EventPlayerLeft))
	})
}

func TestSignup_LobbyModeRoomListProvider(t *testing.T) {
	s := newTestServer(t, testConfig(config.ModeLobby))
	s.SetRoomListProvider(func() []room.RoomInfo {
		return []room.RoomInfo{{ID: 7, Name: "Upstream Room", Players: 3, Capacity: 8}}
	})

	sess := newFakeSession(1, "10.0.0.1:5000")
	s.OnAccept(sess)
	sess.deliver(signupBody(t, false, "Alice", "avatar1"))

	pkts := sess.sentPackets()
	require.NotEmpty(t, pkts)
	last := pkts[len(pkts)-1]
	require.Equal(t, protocol.CmdRoomList, last.Command)

	list, ok := last.Body.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	entry, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Upstream Room", entry["name"])
}
