package database

import (
	"context"
	"fmt"
	"time"

	"chag-go/internal/config"
	"chag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// InitRedis 创建 Redis 客户端并测试连接。连接失败时关闭客户端并返回错误，
// 由调用方决定是否降级。
func InitRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
