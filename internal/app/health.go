package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/dtu-gateway/internal/health"
	redisstorage "github.com/taoyao-code/dtu-gateway/internal/storage/redis"
)

// NewHealthAggregator 创建健康检查聚合器，按已启用的依赖添加检查器
func NewHealthAggregator(dbpool *pgxpool.Pool, redisClient *redisstorage.Client) *health.Aggregator {
	agg := health.NewAggregator()
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	if redisClient != nil {
		agg.AddChecker(health.NewRedisChecker(redisClient))
	}
	return agg
}
