package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；metrics.enable=false 时不暴露指标
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, readyFn func() bool, logger *zap.Logger) *httpserver.Server {
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	return httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readyFn, logger)
}
