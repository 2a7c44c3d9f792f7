package main

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
)

func TestParseHex(t *testing.T) {
	b, err := parseHex("0x02 03 16")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03, 0x16}, b)

	_, err = parseHex("zz")
	assert.Error(t, err)
}

func TestParseRegisters(t *testing.T) {
	v, err := parseRegisters("1, 0x10,65535")
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 16, 65535}, v)

	v, err = parseRegisters("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseRegisters("70000")
	assert.Error(t, err)
}

func TestArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  func() *cobra.Command
		args []string
	}{
		{name: "data without payload", cmd: newDataCmd, args: nil},
		{name: "data bad hex", cmd: newDataCmd, args: []string{"xyz"}},
		{name: "register id too long", cmd: newRegisterCmd, args: []string{"--dtu", "123456789012"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.Execute())
		})
	}
}

func TestDataCmd_SendsFrame(t *testing.T) {
	srv, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer srv.Close()

	cmd := newDataCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.LocalAddr().String(), "--dtu", "139", "0a0b"})
	require.NoError(t, cmd.Execute())

	buf := make([]byte, 64)
	require.NoError(t, srv.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := srv.Read(buf)
	require.NoError(t, err)

	p, err := ddp.Parse(buf[:n], nil)
	require.NoError(t, err)
	assert.Equal(t, ddp.TypeData, p.Type)
	assert.Equal(t, "139", ddp.TrimID(p.DTU))
	assert.Equal(t, []byte{0x0a, 0x0b}, p.Payload)
}
