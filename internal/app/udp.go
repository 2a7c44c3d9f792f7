package app

import (
	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/metrics"
	"github.com/taoyao-code/dtu-gateway/internal/udpserver"
)

// NewUDPServer 根据配置创建 UDP 服务并接上指标回调
func NewUDPServer(cfg cfgpkg.UDPConfig, appm *metrics.AppMetrics) *udpserver.Server {
	srv := udpserver.New(cfg)
	if appm != nil {
		srv.SetMetricsCallbacks(
			func(n int) {
				appm.UDPPacketsReceived.Inc()
				appm.UDPBytesReceived.Add(float64(n))
			},
			func(_ int, err error) {
				if err != nil {
					appm.UDPSendErrors.Inc()
					return
				}
				appm.UDPPacketsSent.Inc()
			},
			func() { appm.UDPRateLimited.Inc() },
		)
	}
	return srv
}
