package ddp

import (
	"context"
	"fmt"
	"net"
)

// Handler 上行包处理器
type Handler interface {
	HandleRegister(ctx context.Context, p *Packet) error
	HandleUnregister(ctx context.Context, p *Packet) error
	HandleData(ctx context.Context, p *Packet) error
	HandleAck(ctx context.Context, p *Packet) error
}

// Router 解析数据报并按包类型分发
type Router struct {
	handler Handler
}

// NewRouter 创建路由器
func NewRouter(handler Handler) *Router {
	return &Router{handler: handler}
}

// Route 解析并分发；返回已解析的包（解析失败时为 nil）
func (r *Router) Route(ctx context.Context, data []byte, from *net.UDPAddr) (*Packet, error) {
	p, err := Parse(data, from)
	if err != nil {
		return nil, fmt.Errorf("parse packet failed: %w", err)
	}

	if !p.Type.IsUplink() {
		// 下行类型不应由 DTU 发出
		return p, protocolErr(p.Type, "unexpected downlink packet from device")
	}

	switch p.Type {
	case TypeRegister:
		return p, r.handler.HandleRegister(ctx, p)
	case TypeUnregister:
		return p, r.handler.HandleUnregister(ctx, p)
	case TypeData:
		return p, r.handler.HandleData(ctx, p)
	default:
		return p, r.handler.HandleAck(ctx, p)
	}
}
