package app

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/naming"
	"github.com/taoyao-code/dtu-gateway/internal/storage/gormrepo"
)

// NewResolver 按 naming.source 构造名称查询
func NewResolver(cfg cfgpkg.NamingConfig, dbpool *pgxpool.Pool, logger *zap.Logger) (naming.Resolver, error) {
	switch cfg.Source {
	case "file":
		r, err := naming.NewFileResolver(cfg.File)
		if err != nil {
			return nil, err
		}
		logger.Info("device names loaded from file", zap.String("path", cfg.File), zap.Int("count", r.Len()))
		return r, nil
	case "db":
		if dbpool == nil {
			return nil, fmt.Errorf("naming.source=db requires database.enable")
		}
		db, err := gormrepo.OpenFromPool(dbpool)
		if err != nil {
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		logger.Info("device names looked up from database")
		return gormrepo.New(db), nil
	default:
		return naming.Nop{}, nil
	}
}
