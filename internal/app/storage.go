package app

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/metrics"
	"github.com/taoyao-code/dtu-gateway/internal/storage"
	pgstorage "github.com/taoyao-code/dtu-gateway/internal/storage/pg"
	"github.com/taoyao-code/dtu-gateway/internal/storage/webhook"
)

// NewStorageQueue 选择存储协作方并包上异步队列：数据库与 webhook 可同时启用，都未启用时只记日志
func NewStorageQueue(cfg cfgpkg.StorageConfig, dbpool *pgxpool.Pool, appm *metrics.AppMetrics, logger *zap.Logger) *storage.Queue {
	var sinks storage.Fanout
	if dbpool != nil {
		sinks = append(sinks, &pgstorage.Repository{Pool: dbpool})
	}
	if wh := cfg.Webhook; wh.Enable {
		p := webhook.NewPusher(&http.Client{Timeout: wh.Timeout}, wh.APIKey, wh.Secret)
		p.Retries = wh.Retries
		b := storage.NewBreaker(&webhook.Sink{URL: wh.URL, Pusher: p}, wh.BreakerThreshold, wh.BreakerCooldown)
		b.OnStateChange(func(from, to storage.BreakerState) {
			logger.Warn("webhook sink state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		})
		sinks = append(sinks, b)
		logger.Info("webhook sink enabled", zap.String("url", wh.URL))
	}

	var sink storage.Sink = storage.LogSink{Log: logger.With(zap.String("component", "readings"))}
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}
	q := storage.NewQueue(sink, cfg.QueueSize, logger)
	if appm != nil {
		q.SetResultCallback(func(result string) { appm.ReadingsTotal.WithLabelValues(result).Inc() })
	}
	return q
}
