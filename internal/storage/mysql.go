package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-insight-go/internal/config"
	"resume-insight-go/internal/storage/models"
)

// MySQL 关系型数据库，保存上传审计记录
type MySQL struct {
	db *gorm.DB
}

// NewMySQL 创建MySQL连接并迁移审计表
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("mysql配置不能为空")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层sql.DB失败: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.ResumeUpload{}); err != nil {
		return nil, fmt.Errorf("迁移审计表失败: %w", err)
	}

	return &MySQL{db: db}, nil
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveResumeUpload 写入一条上传审计记录
func (m *MySQL) SaveResumeUpload(ctx context.Context, upload *models.ResumeUpload) error {
	if err := m.db.WithContext(ctx).Create(upload).Error; err != nil {
		return fmt.Errorf("写入上传审计记录失败: %w", err)
	}
	return nil
}

// ListUploadsByCandidate 查询某候选人的历史上传记录，按时间倒序
func (m *MySQL) ListUploadsByCandidate(ctx context.Context, candidateName string) ([]models.ResumeUpload, error) {
	var uploads []models.ResumeUpload
	err := m.db.WithContext(ctx).
		Where("candidate_name = ?", candidateName).
		Order("created_at DESC").
		Find(&uploads).Error
	if err != nil {
		return nil, fmt.Errorf("查询候选人上传记录失败: %w", err)
	}
	return uploads, nil
}
