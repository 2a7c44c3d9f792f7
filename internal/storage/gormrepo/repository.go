package gormrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taoyao-code/dtu-gateway/internal/storage/models"
)

// Repository 基于 GORM 的设备名称仓库
type Repository struct {
	db *gorm.DB
}

// New 返回一个使用给定 *gorm.DB 的仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// OpenFromPool 复用 pgx 连接池打开 GORM
func OpenFromPool(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// Lookup 实现 naming.Resolver：返回显示名称，未登记时返回空字符串
func (r *Repository) Lookup(ctx context.Context, dtuNo string) (string, error) {
	var dev models.DTUDevice
	err := r.db.WithContext(ctx).
		Where("dtu_no = ?", strings.TrimRight(dtuNo, "\x00")).
		Take(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return dev.Name, nil
}
