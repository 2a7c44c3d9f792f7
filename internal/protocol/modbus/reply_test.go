package modbus

import (
	"errors"
	"testing"

	gomodbus "github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyWithRegisters(n int) []byte {
	buf := []byte{0x02, 0x03, byte(2 * n)}
	for i := 0; i < n; i++ {
		buf = append(buf, 0x00, byte(i+1))
	}
	return buf
}

func TestParseHoldingRegisterReply(t *testing.T) {
	payload := replyWithRegisters(11)
	require.Len(t, payload, 25)

	regs, ok := ParseHoldingRegisterReply(payload, 11)
	require.True(t, ok)
	require.Len(t, regs, 11)
	for i := 0; i < 11; i++ {
		assert.Equal(t, uint16(i+1), regs[i])
	}
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, regs.Values())
}

func TestParseHoldingRegisterReply_WithTrailingCRC(t *testing.T) {
	payload := AppendCRC(replyWithRegisters(11))
	require.Len(t, payload, 27)

	regs, ok := ParseHoldingRegisterReply(payload, 11)
	require.True(t, ok)
	assert.Equal(t, uint16(11), regs[10])
	assert.NoError(t, VerifyCRC(payload))
}

func TestParseHoldingRegisterReply_Insufficient(t *testing.T) {
	payload := replyWithRegisters(11)[:24]

	regs, ok := ParseHoldingRegisterReply(payload, 11)
	assert.False(t, ok)
	assert.Nil(t, regs)

	_, ok = ParseHoldingRegisterReply(nil, 1)
	assert.False(t, ok)
	_, ok = ParseHoldingRegisterReply(payload, 0)
	assert.False(t, ok)
}

func TestIsHoldingRegisterReply(t *testing.T) {
	assert.True(t, IsHoldingRegisterReply([]byte{0x02, 0x03, 0x00}, 0x02))
	assert.False(t, IsHoldingRegisterReply([]byte{0x01, 0x03, 0x00}, 0x02))
	assert.False(t, IsHoldingRegisterReply([]byte{0x02, 0x06, 0x00}, 0x02))
	assert.False(t, IsHoldingRegisterReply([]byte{0x02, 0x03}, 0x02))
}

func TestExceptionFromReply(t *testing.T) {
	assert.NoError(t, ExceptionFromReply(replyWithRegisters(1)))
	assert.NoError(t, ExceptionFromReply([]byte{0x02}))

	err := ExceptionFromReply([]byte{0x02, 0x83, 0x02, 0x00, 0x00})
	require.Error(t, err)
	var mbErr *gomodbus.ModbusError
	require.True(t, errors.As(err, &mbErr))
	assert.Equal(t, byte(0x83), mbErr.FunctionCode)
	assert.Equal(t, byte(gomodbus.ExceptionCodeIllegalDataAddress), mbErr.ExceptionCode)
}

func TestBuildHoldingRegisterReply(t *testing.T) {
	values := []uint16{0x000A, 0x0014, 0xFFFF}
	frame := BuildHoldingRegisterReply(0x02, values)
	require.Len(t, frame, 3+6+2)
	assert.NoError(t, VerifyCRC(frame))

	regs, ok := ParseHoldingRegisterReply(frame, len(values))
	require.True(t, ok)
	assert.Equal(t, values, regs.Values())
}
