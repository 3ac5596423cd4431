package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-insight-go/internal/config"
	"resume-insight-go/internal/constants"
)

// Redis 键值存储，用于记录已见过的原始文件MD5
// 命中只作为重复标记，不阻断处理流程
type Redis struct {
	client    *redis.Client
	md5Expire time.Duration
}

// NewRedisAdapter 创建Redis客户端
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 注入OpenTelemetry追踪钩子
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("安装Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	md5Expire := constants.DefaultMD5RecordExpire
	if cfg.MD5RecordExpireDays > 0 {
		md5Expire = time.Duration(cfg.MD5RecordExpireDays) * 24 * time.Hour
	}

	return &Redis{client: client, md5Expire: md5Expire}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CheckAndAddRawFileMD5 原子地检查并登记原始文件MD5
// 返回登记前该MD5是否已存在；每次调用都会刷新整个Set的过期时间
func (r *Redis) CheckAndAddRawFileMD5(ctx context.Context, md5Hex string) (bool, error) {
	added, err := r.client.SAdd(ctx, constants.RawFileMD5SetKey, md5Hex).Result()
	if err != nil {
		return false, fmt.Errorf("登记文件MD5失败: %w", err)
	}

	if err := r.client.Expire(ctx, constants.RawFileMD5SetKey, r.md5Expire).Err(); err != nil {
		return false, fmt.Errorf("设置MD5记录过期时间失败: %w", err)
	}

	// SAdd返回0表示成员已存在
	return added == 0, nil
}

// RemoveRawFileMD5 移除一条MD5记录
func (r *Redis) RemoveRawFileMD5(ctx context.Context, md5Hex string) error {
	return r.client.SRem(ctx, constants.RawFileMD5SetKey, md5Hex).Err()
}
