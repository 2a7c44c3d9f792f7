// Package gateway 把 DDP 解析器、设备注册表与 UDP 套接字连接起来：
// 处理上行包、周期轮询在线设备、扫描淘汰超时设备，并下发继电器控制指令。
package gateway

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/metrics"
	"github.com/taoyao-code/dtu-gateway/internal/naming"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/modbus"
	"github.com/taoyao-code/dtu-gateway/internal/registry"
	"github.com/taoyao-code/dtu-gateway/internal/storage"
)

// Sender 下发数据报
type Sender interface {
	Send(addr *net.UDPAddr, b []byte) error
}

// Enqueuer 上行数据转发给存储协作方（不得阻塞）
type Enqueuer interface {
	Enqueue(r storage.Reading) error
}

// Options 网关运行参数
type Options struct {
	PollEnable    bool
	PollInterval  time.Duration
	PollSlave     byte
	PollStart     uint16
	PollQuantity  uint16
	SweepInterval time.Duration

	RelaySlave     byte
	RelayRegister  uint16
	WrapServerData bool

	LookupTimeout time.Duration
}

// OptionsFromConfig 由配置生成运行参数
func OptionsFromConfig(cfg *cfgpkg.Config) Options {
	return Options{
		PollEnable:     cfg.Poll.Enable,
		PollInterval:   cfg.Poll.Interval,
		PollSlave:      cfg.Poll.SlaveAddr,
		PollStart:      cfg.Poll.StartAddr,
		PollQuantity:   cfg.Poll.Quantity,
		SweepInterval:  cfg.Registry.SweepInterval,
		RelaySlave:     cfg.Relay.SlaveAddr,
		RelayRegister:  cfg.Relay.Register,
		WrapServerData: cfg.Relay.WrapServerData,
		LookupTimeout:  cfg.Naming.LookupTimeout,
	}
}

// Gateway 实现 ddp.Handler
type Gateway struct {
	reg      *registry.Registry
	sender   Sender
	readings Enqueuer
	resolver naming.Resolver
	opts     Options
	metrics  *metrics.AppMetrics
	log      *zap.Logger
	router   *ddp.Router
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New 创建网关；resolver/metrics/log 可为 nil
func New(reg *registry.Registry, sender Sender, readings Enqueuer, resolver naming.Resolver, opts Options, m *metrics.AppMetrics, log *zap.Logger) *Gateway {
	if resolver == nil {
		resolver = naming.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 2 * time.Second
	}
	g := &Gateway{
		reg:      reg,
		sender:   sender,
		readings: readings,
		resolver: resolver,
		opts:     opts,
		metrics:  m,
		log:      log.With(zap.String("component", "gateway")),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	g.router = ddp.NewRouter(g)
	return g
}

// HandleDatagram 处理一个上行数据报，签名与 udpserver.HandlerFunc 一致。
// 任何单包错误只记录日志，不影响后续数据报。
func (g *Gateway) HandleDatagram(ctx context.Context, data []byte, from *net.UDPAddr) {
	p, err := g.router.Route(ctx, data, from)
	if p == nil {
		g.countParse("error")
		g.log.Warn("drop invalid datagram",
			zap.String("remote", from.String()),
			zap.String("data", hex.EncodeToString(data)),
			zap.Error(err))
		return
	}
	g.countParse("ok")
	if g.metrics != nil {
		g.metrics.DDPRouteTotal.WithLabelValues(p.Type.String()).Inc()
	}
	if err != nil {
		g.log.Warn("handle packet failed",
			zap.String("dtu", ddp.TrimID(p.DTU)),
			zap.String("type", p.Type.String()),
			zap.String("remote", from.String()),
			zap.Error(err))
	}
}

// HandleRegister 以实际来源地址登记设备并回送注册成功
func (g *Gateway) HandleRegister(ctx context.Context, p *ddp.Packet) error {
	created := g.reg.Register(p.DTU, p.Remote, g.now())
	g.updateOnline()
	g.log.Info("dtu registered",
		zap.String("dtu", ddp.TrimID(p.DTU)),
		zap.String("remote", p.Remote.String()),
		zap.String("claimed", net.JoinHostPort(p.ClaimedIP.String(), strconv.Itoa(int(p.ClaimedPort)))),
		zap.Bool("new", created))

	g.lookupName(p.DTU)
	return g.sender.Send(p.Remote, p.Response)
}

// HandleUnregister 删除记录（不存在时为空操作）并回送注销成功
func (g *Gateway) HandleUnregister(ctx context.Context, p *ddp.Packet) error {
	if _, ok := g.reg.Unregister(p.DTU); ok {
		g.updateOnline()
		g.log.Info("dtu unregistered", zap.String("dtu", ddp.TrimID(p.DTU)))
	}
	return g.sender.Send(p.Remote, p.Response)
}

// HandleData 刷新活跃时间，按需解码寄存器应答后转发给存储
func (g *Gateway) HandleData(ctx context.Context, p *ddp.Packet) error {
	if !g.reg.Touch(p.DTU, g.now()) {
		g.log.Debug("data from unregistered dtu", zap.String("dtu", ddp.TrimID(p.DTU)))
	}

	rd := storage.Reading{
		DTU:        ddp.TrimID(p.DTU),
		ReceivedAt: g.now(),
		RawHex:     hex.EncodeToString(p.Payload),
	}
	if exc := modbus.ExceptionFromReply(p.Payload); exc != nil {
		g.log.Warn("modbus exception reply", zap.String("dtu", rd.DTU), zap.Error(exc))
	} else if modbus.IsHoldingRegisterReply(p.Payload, g.opts.PollSlave) {
		if regs, ok := modbus.ParseHoldingRegisterReply(p.Payload, int(g.opts.PollQuantity)); ok {
			rd.Registers = regs
		}
	}

	if g.readings == nil {
		return nil
	}
	if err := g.readings.Enqueue(rd); err != nil {
		g.countReading("dropped")
		if errors.Is(err, storage.ErrQueueFull) {
			g.log.Warn("storage queue full, reading dropped", zap.String("dtu", rd.DTU))
			return nil
		}
		return err
	}
	return nil
}

// HandleAck 仅刷新活跃时间
func (g *Gateway) HandleAck(ctx context.Context, p *ddp.Packet) error {
	g.reg.Touch(p.DTU, g.now())
	return nil
}

// lookupName 异步查询名称，不阻塞报文处理
func (g *Gateway) lookupName(id string) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.opts.LookupTimeout)
		defer cancel()
		name, err := g.resolver.Lookup(ctx, id)
		if err != nil {
			g.log.Warn("name lookup failed", zap.String("dtu", ddp.TrimID(id)), zap.Error(err))
			return
		}
		if name != "" {
			g.reg.SetName(id, name)
		}
	}()
}

// Registry 返回注册表（只读视图由调用方负责）
func (g *Gateway) Registry() *registry.Registry { return g.reg }

// Device 按 DTU 号查询，兼容未补齐 0x00 的短号
func (g *Gateway) Device(id string) (registry.Device, error) {
	if d, ok := g.reg.Get(id); ok {
		return d, nil
	}
	return g.reg.Lookup(ddp.PadID(id))
}

func (g *Gateway) updateOnline() {
	if g.metrics != nil {
		g.metrics.OnlineGauge.Set(float64(g.reg.Len()))
	}
}

func (g *Gateway) countParse(result string) {
	if g.metrics != nil {
		g.metrics.DDPParseTotal.WithLabelValues(result).Inc()
	}
}

func (g *Gateway) countReading(result string) {
	if g.metrics != nil {
		g.metrics.ReadingsTotal.WithLabelValues(result).Inc()
	}
}
