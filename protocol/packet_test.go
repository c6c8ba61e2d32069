package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket_MarshalUnmarshal(t *testing.T) {
	pkt := NewPacket(SrcClient|TypeRequest|DestRoom, CmdSignup)
	pkt.Body = []any{false, "Alice", "avatar1"}

	data, err := pkt.Marshal()
	require.NoError(t, err)

	var got Packet
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, pkt.Desc, got.Desc)
	assert.Equal(t, CmdSignup, got.Command)

	fields, ok := got.BodyFields()
	require.True(t, ok)
	require.Len(t, fields, 3)
	assert.Equal(t, false, BoolAt(fields, 0))
	assert.Equal(t, "Alice", StringAt(fields, 1))
	assert.Equal(t, "avatar1", StringAt(fields, 2))
}

func TestPacket_Unmarshal_Malformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "garbage"},
		{"object instead of array", `{"a":1}`},
		{"too few elements", `[1,2]`},
		{"too many elements", `[1,2,3,4]`},
		{"non-numeric description", `["x",2,null]`},
		{"non-numeric command", `[32,"signup",null]`},
		{"empty input", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var pkt Packet
			err := pkt.Unmarshal([]byte(tc.data))
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestPacket_Unmarshal_LeavesPacketUnchanged(t *testing.T) {
	pkt := Packet{Desc: SrcLobby, Command: CmdSpeak}
	require.Error(t, pkt.Unmarshal([]byte("garbage")))
	assert.Equal(t, SrcLobby, pkt.Desc)
	assert.Equal(t, CmdSpeak, pkt.Command)
}

func TestPacket_Source(t *testing.T) {
	t.Run("single source tags", func(t *testing.T) {
		assert.Equal(t, SourceClient, NewPacket(SrcClient|TypeRequest, CmdSignup).Source())
		assert.Equal(t, SourceRoom, NewPacket(SrcRoom|TypeNotification, CmdSpeak).Source())
		assert.Equal(t, SourceLobby, NewPacket(SrcLobby|TypeNotification, CmdSpeak).Source())
	})

	t.Run("no source tag", func(t *testing.T) {
		assert.Equal(t, SourceUnknown, NewPacket(TypeRequest|DestClient, CmdSignup).Source())
	})
}

func TestPacket_Dest(t *testing.T) {
	pkt := NewPacket(SrcLobby|TypeNotification|DestClient|DestRoom, CmdSpeak)
	assert.Equal(t, DestClient|DestRoom, pkt.Dest())

	clientOnly := NewPacket(SrcLobby|TypeNotification|DestClient, CmdSpeak)
	assert.Equal(t, DestClient, clientOnly.Dest())
	assert.Zero(t, clientOnly.Dest()&DestRoom)
}

func TestBodyFieldHelpers_OutOfRange(t *testing.T) {
	fields := []any{true, "name"}

	assert.Equal(t, "", StringAt(fields, 5))
	assert.Equal(t, "", StringAt(fields, -1))
	assert.Equal(t, "", StringAt(fields, 0)) // bool, not string
	assert.False(t, BoolAt(fields, 1))       // string, not bool
	assert.False(t, BoolAt(fields, 9))
}
