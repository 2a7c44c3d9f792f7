package modbus

import "errors"

// ErrCRCMismatch Modbus RTU 帧 CRC 校验失败
var ErrCRCMismatch = errors.New("modbus crc mismatch")

// CRC16 计算 Modbus RTU CRC-16（多项式 0xA001 反射，初值 0xFFFF）
// 返回两个字节：低字节在前，高字节在后，可直接追加到帧尾
func CRC16(data []byte) [2]byte {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// AppendCRC 复制 data 并在末尾追加 CRC
func AppendCRC(data []byte) []byte {
	crc := CRC16(data)
	out := make([]byte, len(data), len(data)+2)
	copy(out, data)
	return append(out, crc[0], crc[1])
}

// VerifyCRC 校验以 CRC 结尾的完整 RTU 帧
func VerifyCRC(frame []byte) error {
	if len(frame) < 3 {
		return errors.New("frame too short for crc verification")
	}
	n := len(frame) - 2
	crc := CRC16(frame[:n])
	if frame[n] != crc[0] || frame[n+1] != crc[1] {
		return ErrCRCMismatch
	}
	return nil
}
