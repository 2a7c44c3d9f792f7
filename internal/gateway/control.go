package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/dtu-gateway/internal/protocol/ddp"
	"github.com/taoyao-code/dtu-gateway/internal/protocol/modbus"
)

// SetRelay 向已注册设备下发写单寄存器指令（0x0001 吸合 / 0x0000 断开）。
// 设备不在注册表中时返回包装了 registry.ErrNotRegistered 的错误。
func (g *Gateway) SetRelay(ctx context.Context, id string, on bool) (modbus.Command, error) {
	d, err := g.Device(id)
	if err != nil {
		g.countRelay(on, "not_registered")
		return nil, err
	}

	value := modbus.RelayOff
	if on {
		value = modbus.RelayOn
	}
	cmd := modbus.BuildWriteSingleRegister(g.opts.RelaySlave, g.opts.RelayRegister, value)

	frame := []byte(cmd)
	if g.opts.WrapServerData {
		if frame, err = ddp.BuildServerData(d.ID, cmd); err != nil {
			return nil, err
		}
	}
	if err := g.sender.Send(d.Addr(), frame); err != nil {
		g.countRelay(on, "error")
		g.log.Error("relay command send failed",
			zap.String("dtu", ddp.TrimID(d.ID)),
			zap.String("remote", d.Addr().String()),
			zap.Error(err))
		return cmd, fmt.Errorf("send relay command: %w", err)
	}

	g.countRelay(on, "ok")
	g.log.Info("relay command sent",
		zap.String("dtu", ddp.TrimID(d.ID)),
		zap.Bool("on", on),
		zap.String("cmd", cmd.String()))
	return cmd, nil
}

func (g *Gateway) countRelay(on bool, result string) {
	if g.metrics == nil {
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	g.metrics.RelayCommandTotal.WithLabelValues(state, result).Inc()
}
