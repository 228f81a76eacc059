// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatMessage 代表存储在历史记录中的单条聊天消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// 事件类型，对应 learner 的各个操作。
const (
	EventMessage  = "message"
	EventPair     = "pair"
	EventTrain    = "train"
	EventGenerate = "generate"
)

// LearnEvent 代表 learner 事件库中的一条记录。
type LearnEvent struct {
	ID        string    `gorm:"type:varchar(26);primaryKey" json:"id"` // ULID
	Kind      string    `gorm:"type:varchar(16);not null;index" json:"kind"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (LearnEvent) TableName() string {
	return "learn_events"
}

// LearnerStats 是 GET /stats 返回的数据。
type LearnerStats struct {
	Pairs        int            `json:"pairs"`
	VocabSize    int            `json:"vocabSize"`
	Trained      bool           `json:"trained"`
	PendingPairs int            `json:"pendingPairs"`
	UnsavedPairs int            `json:"unsavedPairs"`
	LastSavedAt  time.Time      `json:"lastSavedAt"`
	EventCounts  map[string]int `json:"eventCounts,omitempty"`
}
