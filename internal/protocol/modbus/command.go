package modbus

import (
	"encoding/hex"

	gomodbus "github.com/goburrow/modbus"
)

// 继电器输出值（写单个寄存器）
const (
	RelayOn  uint16 = 0x0001
	RelayOff uint16 = 0x0000

	// RelayRegister 继电器控制寄存器
	RelayRegister uint16 = 0x02C5
)

// Command 一条完整的 RTU 指令（含 CRC）
// 格式：地址(1) + 功能码(1) + 参数1(2, 大端) + 参数2(2, 大端) + CRC(2, 低字节在前)
type Command []byte

// String 十六进制表示，便于日志输出
func (c Command) String() string { return hex.EncodeToString(c) }

// BuildWriteSingleRegister 构建 0x06 写单个寄存器指令
func BuildWriteSingleRegister(slave byte, register, value uint16) Command {
	return build(slave, gomodbus.FuncCodeWriteSingleRegister, register, value)
}

// BuildReadHoldingRegisters 构建 0x03 读保持寄存器指令
func BuildReadHoldingRegisters(slave byte, start, quantity uint16) Command {
	return build(slave, gomodbus.FuncCodeReadHoldingRegisters, start, quantity)
}

func build(slave, fc byte, p1, p2 uint16) Command {
	frame := []byte{
		slave,
		fc,
		byte(p1 >> 8), byte(p1),
		byte(p2 >> 8), byte(p2),
	}
	return Command(AppendCRC(frame))
}
