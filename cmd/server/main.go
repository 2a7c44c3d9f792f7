package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/dtu-gateway/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/logging"
)

func main() {
	// 1) 加载配置：参数 > DTU_CONFIG > ./configs/example.yaml
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Error("gateway exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
