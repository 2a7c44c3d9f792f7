package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/registry"
	redisstorage "github.com/taoyao-code/dtu-gateway/internal/storage/redis"
)

// NewRegistry 构造设备注册表；Redis 可用且开启镜像时挂上 Redis 镜像（已启动）
func NewRegistry(cfg cfgpkg.RegistryConfig, redisClient *redisstorage.Client, serverID string, logger *zap.Logger) (*registry.Registry, *registry.RedisMirror) {
	reg := registry.New(cfg.LivenessTimeout)
	if redisClient == nil || !cfg.Mirror {
		logger.Info("using in-memory registry", zap.Duration("timeout", reg.Timeout()))
		return reg, nil
	}

	mirror := registry.NewRedisMirror(redisClient.Client, serverID, 2*reg.Timeout(), logger)
	mirror.Start()
	reg.AddObserver(mirror)
	logger.Info("registry mirrored to redis",
		zap.String("server_id", mirror.ServerID()),
		zap.Duration("timeout", reg.Timeout()))
	return reg, mirror
}
