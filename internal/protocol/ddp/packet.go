// Package ddp 实现 DTU 与服务器之间的 DDP 报文：0x7B 定界、大端长度、11 字节 ASCII DTU 号。
package ddp

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// PacketType 包类型
type PacketType byte

const (
	TypeRegister          PacketType = 0x01 // 注册（DTU -> 服务器）
	TypeUnregister        PacketType = 0x02 // 注销
	TypeAck               PacketType = 0x05 // 应答/保活
	TypeData              PacketType = 0x09 // 数据
	TypeRegisterSuccess   PacketType = 0x81 // 注册成功（服务器 -> DTU）
	TypeUnregisterSuccess PacketType = 0x82 // 注销成功
	TypeServerData        PacketType = 0x89 // 服务器下发数据
)

// 帧格式常量
const (
	Marker        = 0x7B
	HeaderLen     = 16
	RegisterLen   = 22
	IDLen         = 11
	MaxPayloadLen = 1024
	MaxDataLen    = HeaderLen + MaxPayloadLen

	idOffset        = 4
	registerIPOff   = 15
	registerPortOff = 19
)

func (t PacketType) String() string {
	switch t {
	case TypeRegister:
		return "register"
	case TypeUnregister:
		return "unregister"
	case TypeAck:
		return "ack"
	case TypeData:
		return "data"
	case TypeRegisterSuccess:
		return "register_success"
	case TypeUnregisterSuccess:
		return "unregister_success"
	case TypeServerData:
		return "server_data"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}

// Known 是否为已定义的包类型
func (t PacketType) Known() bool {
	switch t {
	case TypeRegister, TypeUnregister, TypeAck, TypeData,
		TypeRegisterSuccess, TypeUnregisterSuccess, TypeServerData:
		return true
	}
	return false
}

// IsUplink 是否为 DTU 上行包
func (t PacketType) IsUplink() bool {
	return t == TypeRegister || t == TypeUnregister || t == TypeAck || t == TypeData
}

// Packet 解码后的 DDP 包
type Packet struct {
	Type   PacketType
	Length uint16 // 长度字段声明值
	// DTU 原样保留 11 字节（不去除 0x00 填充），展示时使用 TrimID
	DTU string

	// 仅注册包：DTU 自报的地址，只用于诊断
	ClaimedIP   net.IP
	ClaimedPort uint16

	// 数据/下发包载荷（第 16 字节起，可能为空）
	Payload []byte

	// 实际 UDP 来源地址，注册表与后续下发均以此为准
	Remote *net.UDPAddr

	// 注册/注销包需回送的应答帧
	Response []byte
}

// TrimID 去掉 DTU 号尾部的 0x00 填充，仅用于展示
func TrimID(id string) string {
	return strings.TrimRight(id, "\x00")
}

// PadID 将较短的 DTU 号补 0x00 至 11 字节，与解析结果保持一致
func PadID(id string) string {
	if len(id) >= IDLen {
		return id
	}
	return id + strings.Repeat("\x00", IDLen-len(id))
}

// ErrProtocol 所有 ProtocolError 均满足 errors.Is(err, ErrProtocol)
var ErrProtocol = errors.New("ddp protocol error")

// ProtocolError 帧校验失败，说明违反的规则
type ProtocolError struct {
	Type PacketType
	Rule string
}

func (e *ProtocolError) Error() string {
	if e.Type == 0 {
		return "ddp: " + e.Rule
	}
	return fmt.Sprintf("ddp %s: %s", e.Type, e.Rule)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func protocolErr(t PacketType, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Type: t, Rule: fmt.Sprintf(format, args...)}
}
