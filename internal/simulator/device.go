// Package simulator 模拟一台 DTU：按 DDP 协议注册、保活、应答轮询与继电器指令。
// 用于联调网关和端到端测试。
package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	gomodbus "github.com/goburrow/modbus"

	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/modbus"
)

// ErrUnexpectedReply 服务器应答类型或 DTU 号不符
var ErrUnexpectedReply = errors.New("unexpected reply from server")

// Options 模拟设备参数
type Options struct {
	Server    string        // 网关 UDP 地址
	DTU       string        // DTU 号，不足 11 字节补 0x00
	Slave     byte          // 模拟的 Modbus 从站地址
	Relay     uint16        // 继电器寄存器
	Registers []uint16      // 0x03 应答返回的寄存器值
	Timeout   time.Duration // 等待应答超时
}

// Event 收到的下行帧及模拟设备的处理结果
type Event struct {
	Frame  []byte // 原始下行帧
	Modbus []byte // 解出的 Modbus RTU 帧
	Reply  []byte // 回送的数据包，nil 表示未回复
	Err    error
}

// Device 通过一个已连接的 UDP socket 与网关通信
type Device struct {
	opts Options
	id   string
	conn *net.UDPConn

	mu    sync.Mutex
	relay uint16
}

// Dial 连接网关；Registers 为空时使用 11 个递增的寄存器值
func Dial(opts Options) (*Device, error) {
	if opts.Slave == 0 {
		opts.Slave = 0x02
	}
	if opts.Relay == 0 {
		opts.Relay = modbus.RelayRegister
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if len(opts.Registers) == 0 {
		opts.Registers = make([]uint16, 11)
		for i := range opts.Registers {
			opts.Registers[i] = uint16(i + 1)
		}
	}
	if len(opts.DTU) == 0 || len(opts.DTU) > ddp.IDLen {
		return nil, fmt.Errorf("dtu id must be 1..%d bytes, got %q", ddp.IDLen, opts.DTU)
	}

	raddr, err := net.ResolveUDPAddr("udp4", opts.Server)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Server, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Server, err)
	}
	return &Device{opts: opts, id: ddp.PadID(opts.DTU), conn: conn}, nil
}

// ID 补齐后的 DTU 号
func (d *Device) ID() string { return d.id }

// LocalAddr 本地 UDP 地址
func (d *Device) LocalAddr() *net.UDPAddr { return d.conn.LocalAddr().(*net.UDPAddr) }

// Relay 当前继电器寄存器值
func (d *Device) Relay() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relay
}

// Close 关闭 socket
func (d *Device) Close() error { return d.conn.Close() }

// Register 发送注册包并等待注册成功应答
func (d *Device) Register(ctx context.Context) error {
	local := d.LocalAddr()
	if _, err := d.conn.Write(ddp.BuildRegister(d.id, local.IP, uint16(local.Port))); err != nil {
		return fmt.Errorf("send register: %w", err)
	}
	return d.expect(ctx, ddp.TypeRegisterSuccess)
}

// Unregister 发送注销包并等待注销成功应答
func (d *Device) Unregister(ctx context.Context) error {
	if _, err := d.conn.Write(ddp.BuildUnregister(d.id)); err != nil {
		return fmt.Errorf("send unregister: %w", err)
	}
	return d.expect(ctx, ddp.TypeUnregisterSuccess)
}

// Ack 发送保活包，服务器不回复
func (d *Device) Ack() error {
	_, err := d.conn.Write(ddp.BuildAck(d.id))
	return err
}

// SendData 发送上行数据包
func (d *Device) SendData(payload []byte) error {
	frame, err := ddp.BuildData(d.id, payload)
	if err != nil {
		return err
	}
	_, err = d.conn.Write(frame)
	return err
}

// expect 读取下一个应答包，跳过期间到达的下发数据
func (d *Device) expect(ctx context.Context, want ddp.PacketType) error {
	deadline := time.Now().Add(d.opts.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	buf := make([]byte, ddp.MaxDataLen)
	for {
		if err := d.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		n, err := d.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", want, err)
		}
		p, err := ddp.Parse(buf[:n], nil)
		if err != nil {
			continue
		}
		if p.Type == ddp.TypeServerData {
			continue
		}
		if p.Type != want || p.DTU != d.id {
			return fmt.Errorf("%w: got %s for %q", ErrUnexpectedReply, p.Type, ddp.TrimID(p.DTU))
		}
		return nil
	}
}

// Handle 处理一个下行帧：0x03 读保持寄存器返回寄存器值，0x06 写继电器回显请求。
// 下发帧可能是 0x89 包装的，也可能是裸 Modbus 帧。
func (d *Device) Handle(frame []byte) Event {
	ev := Event{Frame: frame}
	pdu := frame
	if len(frame) >= ddp.HeaderLen && frame[0] == ddp.Marker {
		p, err := ddp.Parse(frame, nil)
		if err != nil {
			ev.Err = err
			return ev
		}
		if p.Type != ddp.TypeServerData {
			return ev
		}
		pdu = p.Payload
	}
	ev.Modbus = pdu

	if len(pdu) < 8 {
		ev.Err = fmt.Errorf("modbus frame too short: %d bytes", len(pdu))
		return ev
	}
	if err := modbus.VerifyCRC(pdu[:8]); err != nil {
		ev.Err = err
		return ev
	}
	if pdu[0] != d.opts.Slave {
		return ev
	}

	var reply []byte
	switch pdu[1] {
	case gomodbus.FuncCodeReadHoldingRegisters:
		start := int(pdu[2])<<8 | int(pdu[3])
		qty := int(pdu[4])<<8 | int(pdu[5])
		values := make([]uint16, qty)
		for i := range values {
			if j := start + i; j < len(d.opts.Registers) {
				values[i] = d.opts.Registers[j]
			}
		}
		reply = modbus.BuildHoldingRegisterReply(d.opts.Slave, values)
	case gomodbus.FuncCodeWriteSingleRegister:
		reg := uint16(pdu[2])<<8 | uint16(pdu[3])
		if reg == d.opts.Relay {
			d.mu.Lock()
			d.relay = uint16(pdu[4])<<8 | uint16(pdu[5])
			d.mu.Unlock()
		}
		reply = append([]byte(nil), pdu[:8]...)
	default:
		reply = modbus.AppendCRC([]byte{d.opts.Slave, pdu[1] | 0x80, gomodbus.ExceptionCodeIllegalFunction})
	}

	if ev.Err = d.SendData(reply); ev.Err == nil {
		ev.Reply = reply
	}
	return ev
}

// Run 持续应答下发指令并按 heartbeat 周期发送保活包，直到 ctx 取消。
// onEvent 可为 nil。
func (d *Device) Run(ctx context.Context, heartbeat time.Duration, onEvent func(Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	frames := make(chan []byte, 16)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	// 返回前等待读协程退出，之后 Register/Unregister 可以安全复用连接
	defer func() {
		cancel()
		_ = d.conn.SetReadDeadline(time.Now())
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, ddp.MaxDataLen)
		for {
			_ = d.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			n, err := d.conn.Read(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				readErr <- err
				return
			}
			select {
			case frames <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
	}()

	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case <-tick:
			if err := d.Ack(); err != nil {
				return fmt.Errorf("send ack: %w", err)
			}
		case f := <-frames:
			ev := d.Handle(f)
			if onEvent != nil {
				onEvent(ev)
			}
		}
	}
}
