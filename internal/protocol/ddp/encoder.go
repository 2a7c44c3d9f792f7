package ddp

import (
	"encoding/binary"
	"net"
)

// header 写入 16 字节头部：0x7B + 类型 + 总长度 + DTU 号(左对齐, 0x00 填充) + 0x7B
func header(buf []byte, t PacketType, dtu string) {
	buf[0] = Marker
	buf[1] = byte(t)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	copy(buf[idOffset:idOffset+IDLen], dtu)
	buf[HeaderLen-1] = Marker
}

// BuildResponse 构建 16 字节应答包（注册成功/注销成功等）
func BuildResponse(t PacketType, dtu string) []byte {
	buf := make([]byte, HeaderLen)
	header(buf, t, dtu)
	return buf
}

// BuildServerData 构建服务器下发数据包，长度 = 16 + 载荷长度
func BuildServerData(dtu string, payload []byte) ([]byte, error) {
	return withPayload(TypeServerData, dtu, payload)
}

// BuildData 构建 DTU 上行数据包
func BuildData(dtu string, payload []byte) ([]byte, error) {
	return withPayload(TypeData, dtu, payload)
}

// BuildUnregister 构建 DTU 注销包
func BuildUnregister(dtu string) []byte { return BuildResponse(TypeUnregister, dtu) }

// BuildAck 构建 DTU 保活/应答包
func BuildAck(dtu string) []byte { return BuildResponse(TypeAck, dtu) }

// BuildRegister 构建 22 字节注册包，ip/port 为 DTU 自报地址
func BuildRegister(dtu string, ip net.IP, port uint16) []byte {
	buf := make([]byte, RegisterLen)
	buf[0] = Marker
	buf[1] = byte(TypeRegister)
	binary.BigEndian.PutUint16(buf[2:4], RegisterLen)
	copy(buf[idOffset:idOffset+IDLen], dtu)
	if v4 := ip.To4(); v4 != nil {
		copy(buf[registerIPOff:registerIPOff+4], v4)
	}
	binary.BigEndian.PutUint16(buf[registerPortOff:registerPortOff+2], port)
	buf[RegisterLen-1] = Marker
	return buf
}

func withPayload(t PacketType, dtu string, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, protocolErr(t, "payload length %d exceeds maximum %d", len(payload), MaxPayloadLen)
	}
	buf := make([]byte, HeaderLen+len(payload))
	header(buf, t, dtu)
	copy(buf[HeaderLen:], payload)
	return buf, nil
}
