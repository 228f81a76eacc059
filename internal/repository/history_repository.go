// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chag-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const historyTTL = 7 * 24 * time.Hour

// HistoryRepository 定义了 chag 聊天历史记录的操作接口，按说话人标签分组。
type HistoryRepository interface {
	GetHistory(ctx context.Context, label string) ([]model.ChatMessage, error)
	AppendHistory(ctx context.Context, label string, messages ...model.ChatMessage) error
}

// historyKV 是历史记录用到的 Redis 操作。键不存在时 Get 返回 redis.Nil。
type historyKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisKV struct {
	client *redis.Client
}

func (kv redisKV) Get(ctx context.Context, key string) (string, error) {
	return kv.client.Get(ctx, key).Result()
}

func (kv redisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return kv.client.Set(ctx, key, value, ttl).Err()
}

type redisHistoryRepository struct {
	kv          historyKV
	maxMessages int
}

// NewRedisHistoryRepository 创建一个基于 Redis 的 HistoryRepository 实例。
func NewRedisHistoryRepository(redisClient *redis.Client, maxMessages int) HistoryRepository {
	return &redisHistoryRepository{kv: redisKV{client: redisClient}, maxMessages: maxMessages}
}

func historyKey(label string) string {
	return fmt.Sprintf("chag:history:%s", label)
}

// GetHistory 从 Redis 获取某个标签的历史记录。
func (r *redisHistoryRepository) GetHistory(ctx context.Context, label string) ([]model.ChatMessage, error) {
	jsonData, err := r.kv.Get(ctx, historyKey(label))
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
	}
	return messages, nil
}

// AppendHistory 追加消息并只保留最近 maxMessages 条。
func (r *redisHistoryRepository) AppendHistory(ctx context.Context, label string, messages ...model.ChatMessage) error {
	history, err := r.GetHistory(ctx, label)
	if err != nil {
		return err
	}
	history = trimHistory(append(history, messages...), r.maxMessages)
	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	if err := r.kv.Set(ctx, historyKey(label), jsonData, historyTTL); err != nil {
		return fmt.Errorf("failed to set chat history: %w", err)
	}
	return nil
}

// memoryHistoryRepository 在未配置 Redis 时使用，进程重启后历史丢失。
type memoryHistoryRepository struct {
	mu          sync.Mutex
	maxMessages int
	data        map[string][]model.ChatMessage
}

// NewMemoryHistoryRepository 创建一个进程内的 HistoryRepository 实例。
func NewMemoryHistoryRepository(maxMessages int) HistoryRepository {
	return &memoryHistoryRepository{maxMessages: maxMessages, data: make(map[string][]model.ChatMessage)}
}

func (r *memoryHistoryRepository) GetHistory(_ context.Context, label string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChatMessage, len(r.data[label]))
	copy(out, r.data[label])
	return out, nil
}

func (r *memoryHistoryRepository) AppendHistory(_ context.Context, label string, messages ...model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[label] = trimHistory(append(r.data[label], messages...), r.maxMessages)
	return nil
}

func trimHistory(messages []model.ChatMessage, max int) []model.ChatMessage {
	if max > 0 && len(messages) > max {
		return messages[len(messages)-max:]
	}
	return messages
}
