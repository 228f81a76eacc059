// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chag-go/internal/config"
	"chag-go/pkg/log"
	"chag-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// messageWriter 是 *kafka.Writer 中 PairProducer 用到的部分，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PairProducer 将 learner 接受的训练样本发布到 Kafka 主题。
type PairProducer struct {
	writer messageWriter
}

// NewPairProducer 初始化 Kafka 生产者。Brokers 以逗号分隔。
func NewPairProducer(cfg config.KafkaConfig) *PairProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &PairProducer{writer: w}
}

// PublishPair 发送一个训练样本事件到 Kafka，以事件 ID 作为消息 key。
func (p *PairProducer) PublishPair(ctx context.Context, ev tasks.TrainingPairEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal training pair: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.ID), Value: value}); err != nil {
		return fmt.Errorf("write training pair to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层 writer，刷新未发送的消息。
func (p *PairProducer) Close() error {
	return p.writer.Close()
}
