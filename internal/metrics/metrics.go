package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 网关业务指标
type AppMetrics struct {
	UDPPacketsReceived prometheus.Counter
	UDPBytesReceived   prometheus.Counter
	UDPPacketsSent     prometheus.Counter
	UDPSendErrors      prometheus.Counter
	UDPRateLimited     prometheus.Counter
	DDPParseTotal      *prometheus.CounterVec // labels: result=ok|error
	DDPRouteTotal      *prometheus.CounterVec // labels: type
	OnlineGauge        prometheus.Gauge       // 注册表中设备数
	EvictedTotal       prometheus.Counter     // 超时淘汰
	PollSentTotal      *prometheus.CounterVec // labels: result=ok|error
	RelayCommandTotal  *prometheus.CounterVec // labels: state=on|off, result
	ReadingsTotal      *prometheus.CounterVec // labels: result=stored|dropped|error
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		UDPPacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_packets_received_total",
			Help: "Total UDP datagrams received.",
		}),
		UDPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_bytes_received_total",
			Help: "Total bytes received over UDP.",
		}),
		UDPPacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_packets_sent_total",
			Help: "Total UDP datagrams sent.",
		}),
		UDPSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_send_errors_total",
			Help: "UDP send failures.",
		}),
		UDPRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_rate_limited_total",
			Help: "Datagrams dropped by the per-source rate limiter.",
		}),
		DDPParseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddp_parse_total",
			Help: "DDP packet parse attempts.",
		}, []string{"result"}),
		DDPRouteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddp_route_total",
			Help: "DDP routed packets by type.",
		}, []string{"type"}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registry_online_count",
			Help: "Current number of registered DTUs.",
		}),
		EvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_evicted_total",
			Help: "DTUs evicted by the liveness sweep.",
		}),
		PollSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_commands_total",
			Help: "Read-holding-register poll commands by result.",
		}, []string{"result"}),
		RelayCommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_commands_total",
			Help: "Relay control commands by state and result.",
		}, []string{"state", "result"}),
		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readings_total",
			Help: "Uplink readings forwarded to storage by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.UDPPacketsReceived, m.UDPBytesReceived, m.UDPPacketsSent, m.UDPSendErrors, m.UDPRateLimited,
		m.DDPParseTotal, m.DDPRouteTotal, m.OnlineGauge, m.EvictedTotal,
		m.PollSentTotal, m.RelayCommandTotal, m.ReadingsTotal,
	)
	return m
}
