package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"resume-insight-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
// Qdrant是必需组件；MinIO/Redis/MySQL/RabbitMQ按配置初始化，失败只记录警告
type Storage struct {
	// 向量数据库（必需）
	Qdrant *Qdrant

	// 对象存储：原始简历归档
	MinIO *MinIO

	// 键值存储：文件MD5重复标记
	Redis *Redis

	// 关系型数据库：上传审计
	MySQL *MySQL

	// 消息队列：处理完成事件
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error

	// Qdrant是检索流水线的核心，初始化失败直接返回
	s.Qdrant, err = NewQdrant(&cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}

	var minioLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		minioLogger = log.New(os.Stderr, "[MinIO] ", log.LstdFlags)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
		if err != nil {
			log.Printf("警告: 初始化MinIO失败，原始文件归档不可用: %v", err)
			s.MinIO = nil
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败，文件MD5去重标记不可用: %v", err)
			s.Redis = nil
		}
	}

	if cfg.MySQL.Host != "" {
		s.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			log.Printf("警告: 初始化MySQL失败，上传审计不可用: %v", err)
			s.MySQL = nil
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("警告: 初始化RabbitMQ失败，处理完成事件不可用: %v", err)
			s.RabbitMQ = nil
		}
	}

	return s, nil
}

// Close 关闭所有已初始化的组件
func (s *Storage) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis失败: %v", err)
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Printf("关闭MySQL失败: %v", err)
		}
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ失败: %v", err)
		}
	}
}
