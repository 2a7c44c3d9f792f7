package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateServerID 生成实例ID，用作 Redis 镜像的归属标记。
// 优先使用环境变量 SERVER_ID，否则为 dtu-gateway-{hostname}-{uuid前8位}
func GenerateServerID() string {
	if serverID := os.Getenv("SERVER_ID"); serverID != "" {
		return serverID
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("dtu-gateway-%s-%s", hostname, uuid.New().String()[:8])
}
