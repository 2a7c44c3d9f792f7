package ddp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponse(t *testing.T) {
	buf := BuildResponse(TypeRegisterSuccess, testDTU)
	want := []byte{
		0x7B, 0x81, 0x00, 0x10,
		'1', '3', '9', '1', '2', '3', '4', '5', '6', '7', '8',
		0x7B,
	}
	assert.Equal(t, want, buf)
}

func TestBuildResponse_PadsShortID(t *testing.T) {
	buf := BuildResponse(TypeUnregisterSuccess, "123")
	assert.Equal(t, []byte{'1', '2', '3', 0, 0, 0, 0, 0, 0, 0, 0}, buf[4:15])
	assert.Equal(t, byte(Marker), buf[15])
}

func TestBuildServerData(t *testing.T) {
	payload := []byte{0x02, 0x03, 0x00, 0x00, 0x00, 0x0B, 0x04, 0x3E}
	buf, err := BuildServerData(testDTU, payload)
	require.NoError(t, err)
	require.Len(t, buf, 24)
	assert.Equal(t, byte(TypeServerData), buf[1])
	assert.Equal(t, []byte{0x00, 0x18}, buf[2:4])
	assert.Equal(t, byte(Marker), buf[15])
	assert.Equal(t, payload, buf[16:])

	_, err = BuildServerData(testDTU, make([]byte, MaxPayloadLen+1))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestIdentifierRoundTrip(t *testing.T) {
	frames := [][]byte{
		BuildResponse(TypeRegisterSuccess, testDTU),
		BuildResponse(TypeUnregisterSuccess, testDTU),
		BuildAck(testDTU),
	}
	sd, err := BuildServerData(testDTU, []byte{0x01})
	require.NoError(t, err)
	frames = append(frames, sd)

	for _, f := range frames {
		p, err := Parse(f, testRemote)
		require.NoError(t, err)
		assert.Equal(t, testDTU, p.DTU)
		assert.Len(t, p.DTU, IDLen)
	}
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "register", TypeRegister.String())
	assert.Equal(t, "server_data", TypeServerData.String())
	assert.Equal(t, "unknown(0x33)", PacketType(0x33).String())
	assert.True(t, TypeAck.IsUplink())
	assert.False(t, TypeServerData.IsUplink())
}

func TestPadID(t *testing.T) {
	assert.Equal(t, "1391234\x00\x00\x00\x00", PadID("1391234"))
	assert.Equal(t, testDTU, PadID(testDTU))

	p, err := Parse(BuildAck("1391234"), testRemote)
	require.NoError(t, err)
	assert.Equal(t, PadID("1391234"), p.DTU)
}
