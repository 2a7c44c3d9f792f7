package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// UDPStatus UDP 网关运行状态来源
type UDPStatus interface {
	LocalAddr() *net.UDPAddr
}

// QueueStatus 存储队列积压来源
type QueueStatus interface {
	Len() int
}

// UDPChecker 检查 UDP 套接字是否在监听、存储队列是否积压
type UDPChecker struct {
	server   UDPStatus
	queue    QueueStatus
	queueCap int
	online   func() int
}

// NewUDPChecker queue 可为 nil；online 返回注册表设备数，可为 nil
func NewUDPChecker(server UDPStatus, queue QueueStatus, queueCap int, online func() int) *UDPChecker {
	return &UDPChecker{server: server, queue: queue, queueCap: queueCap, online: online}
}

func (c *UDPChecker) Name() string { return "udp" }

func (c *UDPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	addr := c.server.LocalAddr()
	if addr == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "udp socket not listening",
			Latency: time.Since(start),
		}
	}

	details := map[string]interface{}{"listen": addr.String()}
	if c.online != nil {
		details["online_dtus"] = c.online()
	}

	status, message := StatusHealthy, "ok"
	if c.queue != nil && c.queueCap > 0 {
		backlog := c.queue.Len()
		usage := float64(backlog) / float64(c.queueCap)
		details["storage_backlog"] = backlog
		details["storage_usage"] = fmt.Sprintf("%.1f%%", usage*100)
		if usage > 0.8 {
			status, message = StatusDegraded, "storage queue backlog"
		}
	}

	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
