package modbus

import (
	"encoding/binary"

	gomodbus "github.com/goburrow/modbus"
)

// HoldingRegisters 寄存器偏移 -> 16 位值
type HoldingRegisters map[int]uint16

// Values 按偏移顺序返回寄存器值
func (h HoldingRegisters) Values() []uint16 {
	out := make([]uint16, len(h))
	for i := range out {
		out[i] = h[i]
	}
	return out
}

// ParseHoldingRegisterReply 解析 0x03 应答：地址(1) + 功能码(1) + 字节数(1) + 寄存器值(2*n, 大端)
// 数据不足 3+2*count 字节时返回 ok=false（UDP 截断属于正常现象，不视为错误）
// 不校验尾部 CRC，调用方可按需使用 VerifyCRC
func ParseHoldingRegisterReply(payload []byte, count int) (regs HoldingRegisters, ok bool) {
	if count <= 0 || len(payload) < 3+2*count {
		return nil, false
	}
	regs = make(HoldingRegisters, count)
	for i := 0; i < count; i++ {
		off := 3 + 2*i
		regs[i] = binary.BigEndian.Uint16(payload[off : off+2])
	}
	return regs, true
}

// IsHoldingRegisterReply 判断载荷是否像是来自 slave 的 0x03 正常应答
func IsHoldingRegisterReply(payload []byte, slave byte) bool {
	return len(payload) >= 3 &&
		payload[0] == slave &&
		payload[1] == gomodbus.FuncCodeReadHoldingRegisters
}

// ExceptionFromReply 若载荷为异常应答（功能码最高位置 1），返回 *gomodbus.ModbusError
func ExceptionFromReply(payload []byte) error {
	if len(payload) < 3 || payload[1]&0x80 == 0 {
		return nil
	}
	return &gomodbus.ModbusError{
		FunctionCode:  payload[1],
		ExceptionCode: payload[2],
	}
}

// BuildHoldingRegisterReply 构建 0x03 正常应答（含 CRC），供设备模拟与测试使用
func BuildHoldingRegisterReply(slave byte, values []uint16) []byte {
	frame := make([]byte, 3, 3+2*len(values)+2)
	frame[0] = slave
	frame[1] = gomodbus.FuncCodeReadHoldingRegisters
	frame[2] = byte(2 * len(values))
	for _, v := range values {
		frame = binary.BigEndian.AppendUint16(frame, v)
	}
	return AppendCRC(frame)
}
