package repository

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"chag-go/internal/model"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// EventRepository 记录 learner 的消息、训练样本、训练与生成事件。
type EventRepository interface {
	Record(ctx context.Context, kind, content string) (*model.LearnEvent, error)
	Recent(ctx context.Context, kind string, limit int) ([]model.LearnEvent, error)
	CountByKind(ctx context.Context) (map[string]int, error)
}

type gormEventRepository struct {
	db      *gorm.DB
	mu      sync.Mutex
	entropy io.Reader
}

// NewEventRepository 创建基于 gorm 的 EventRepository，并自动迁移表结构。
func NewEventRepository(db *gorm.DB) (EventRepository, error) {
	if err := db.AutoMigrate(&model.LearnEvent{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &gormEventRepository{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

func (r *gormEventRepository) newID(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), r.entropy).String()
}

// Record 写入一条事件。
func (r *gormEventRepository) Record(ctx context.Context, kind, content string) (*model.LearnEvent, error) {
	now := time.Now().UTC()
	ev := &model.LearnEvent{ID: r.newID(now), Kind: kind, Content: content, CreatedAt: now}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, fmt.Errorf("insert learn event: %w", err)
	}
	return ev, nil
}

// Recent 按时间倒序返回某类事件，kind 为空时返回全部类型。
// ULID 单调递增，按 id 排序即按写入顺序排序。
func (r *gormEventRepository) Recent(ctx context.Context, kind string, limit int) ([]model.LearnEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var events []model.LearnEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("query learn events: %w", err)
	}
	return events, nil
}

type kindCount struct {
	Kind  string
	Count int
}

// CountByKind 返回每种事件的数量。
func (r *gormEventRepository) CountByKind(ctx context.Context) (map[string]int, error) {
	var rows []kindCount
	err := r.db.WithContext(ctx).
		Model(&model.LearnEvent{}).
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count learn events: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}
	return counts, nil
}
