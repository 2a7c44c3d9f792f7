package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/modbus"
	"github.com/taoyao-code/dtu-gateway/internal/registry"
)

// PollResult 一轮轮询的结果
type PollResult struct {
	Sent   int
	Failed int
}

// PollOnce 向每个在线设备下发读保持寄存器指令。
// 单个设备发送失败只记录日志，不影响其余设备。
func (g *Gateway) PollOnce(ctx context.Context) PollResult {
	var res PollResult
	cmd := modbus.BuildReadHoldingRegisters(g.opts.PollSlave, g.opts.PollStart, g.opts.PollQuantity)

	for _, d := range g.reg.Snapshot() {
		if ctx.Err() != nil {
			return res
		}
		frame, err := ddp.BuildServerData(d.ID, cmd)
		if err == nil {
			err = g.sender.Send(d.Addr(), frame)
		}
		if err != nil {
			res.Failed++
			g.countPoll("error")
			g.log.Warn("poll send failed",
				zap.String("dtu", ddp.TrimID(d.ID)),
				zap.String("remote", d.Addr().String()),
				zap.Error(err))
			continue
		}
		res.Sent++
		g.countPoll("ok")
	}
	if res.Sent+res.Failed > 0 {
		g.log.Debug("poll round done", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed), zap.String("cmd", cmd.String()))
	}
	return res
}

// SweepOnce 淘汰超出存活窗口的设备
func (g *Gateway) SweepOnce(now time.Time) []registry.Device {
	evicted := g.reg.Sweep(now)
	for _, d := range evicted {
		g.log.Info("dtu evicted",
			zap.String("dtu", ddp.TrimID(d.ID)),
			zap.Time("last_active", d.LastActive),
			zap.Duration("idle", now.Sub(d.LastActive)))
	}
	if len(evicted) > 0 {
		if g.metrics != nil {
			g.metrics.EvictedTotal.Add(float64(len(evicted)))
		}
		g.updateOnline()
	}
	return evicted
}

// Start 启动轮询与扫描两个独立的定时任务
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return errors.New("gateway already running")
	}
	if g.stopped {
		return errors.New("gateway stopped, cannot restart")
	}
	g.running = true

	if g.opts.PollEnable && g.opts.PollInterval > 0 {
		g.wg.Add(1)
		go g.every(ctx, g.opts.PollInterval, func(time.Time) { g.PollOnce(ctx) })
	}
	sweep := g.opts.SweepInterval
	if sweep <= 0 {
		sweep = 30 * time.Second
	}
	g.wg.Add(1)
	go g.every(ctx, sweep, func(t time.Time) { g.SweepOnce(t) })

	g.log.Info("gateway loops started",
		zap.Bool("poll", g.opts.PollEnable),
		zap.Duration("poll_interval", g.opts.PollInterval),
		zap.Duration("sweep_interval", sweep),
		zap.Duration("liveness_timeout", g.reg.Timeout()))
	return nil
}

// Stop 停止定时任务并等待进行中的名称查询结束。
// 调用前应先停止 UDP 收包，停止后不能再次 Start。
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		g.wg.Wait()
		return
	}
	g.running = false
	g.stopped = true
	close(g.done)
	g.mu.Unlock()

	g.wg.Wait()
	g.log.Info("gateway loops stopped")
}

func (g *Gateway) every(ctx context.Context, interval time.Duration, fn func(time.Time)) {
	defer g.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.done:
			return
		case t := <-ticker.C:
			fn(t)
		}
	}
}

func (g *Gateway) countPoll(result string) {
	if g.metrics != nil {
		g.metrics.PollSentTotal.WithLabelValues(result).Inc()
	}
}
