package ddp

import (
	"encoding/binary"
	"net"
)

// Parse 校验并解码一个 UDP 数据报；from 为实际发送方地址
// 校验规则全部通过后才构造结果，任何一条失败都返回 *ProtocolError
func Parse(data []byte, from *net.UDPAddr) (*Packet, error) {
	if len(data) < 2 {
		return nil, protocolErr(0, "frame too short: %d bytes", len(data))
	}
	t := PacketType(data[1])
	if !t.Known() {
		return nil, protocolErr(0, "unknown packet type 0x%02X", data[1])
	}

	switch t {
	case TypeRegister:
		if err := checkFixed(t, data, RegisterLen); err != nil {
			return nil, err
		}
	case TypeUnregister, TypeAck, TypeRegisterSuccess, TypeUnregisterSuccess:
		if err := checkFixed(t, data, HeaderLen); err != nil {
			return nil, err
		}
	case TypeData, TypeServerData:
		if len(data) < HeaderLen {
			return nil, protocolErr(t, "frame length %d below minimum %d", len(data), HeaderLen)
		}
		if len(data) > MaxDataLen {
			return nil, protocolErr(t, "frame length %d exceeds maximum %d", len(data), MaxDataLen)
		}
		// 载荷长度可变，头部结束标志位于第 16 字节
		if data[0] != Marker || data[HeaderLen-1] != Marker {
			return nil, protocolErr(t, "bad frame marker")
		}
	}

	p := &Packet{
		Type:   t,
		Length: binary.BigEndian.Uint16(data[2:4]),
		DTU:    string(data[idOffset : idOffset+IDLen]),
		Remote: from,
	}

	switch t {
	case TypeRegister:
		ip := make(net.IP, 4)
		copy(ip, data[registerIPOff:registerIPOff+4])
		p.ClaimedIP = ip
		p.ClaimedPort = binary.BigEndian.Uint16(data[registerPortOff : registerPortOff+2])
		p.Response = BuildResponse(TypeRegisterSuccess, p.DTU)
	case TypeUnregister:
		p.Response = BuildResponse(TypeUnregisterSuccess, p.DTU)
	case TypeData, TypeServerData:
		p.Payload = append([]byte(nil), data[HeaderLen:]...)
	}
	return p, nil
}

// checkFixed 定长包：总长度、首尾 0x7B、长度字段三项全部匹配
func checkFixed(t PacketType, data []byte, want int) error {
	if len(data) != want {
		return protocolErr(t, "frame length %d, want %d", len(data), want)
	}
	if data[0] != Marker || data[want-1] != Marker {
		return protocolErr(t, "bad frame marker")
	}
	if n := binary.BigEndian.Uint16(data[2:4]); int(n) != want {
		return protocolErr(t, "length field 0x%04X, want 0x%04X", n, want)
	}
	return nil
}
