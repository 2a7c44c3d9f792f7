package models

import "time"

// 注意：
// - 与 internal/migrate/sql/0002_dtu_devices_up.sql 保持一致
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// DTUDevice 映射 dtu_devices 表：DTU 号与显示名称
type DTUDevice struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DTUNo     string    `gorm:"column:dtu_no;type:varchar(11);not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DTUDevice) TableName() string { return "dtu_devices" }
