package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-insight-go/internal/config"
	"resume-insight-go/internal/constants"
)

// ResumeProcessedEvent 简历处理完成事件
type ResumeProcessedEvent struct {
	UploadUUID    string `json:"upload_uuid"`
	CandidateName string `json:"candidate_name"`
	PointID       string `json:"point_id"`
	ProcessedAt   string `json:"processed_at"` // ISO-8601
}

// RabbitMQ 消息队列，发布简历处理完成事件
type RabbitMQ struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewRabbitMQ 创建RabbitMQ连接并声明事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开RabbitMQ通道失败: %w", err)
	}

	exchange := cfg.EventsExchange
	if exchange == "" {
		exchange = "resume.events"
	}
	routingKey := cfg.ProcessedRoutingKey
	if routingKey == "" {
		routingKey = constants.DefaultProcessedRoutingKey
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("声明交换机 %s 失败: %w", exchange, err)
	}

	return &RabbitMQ{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishResumeProcessed 发布简历处理完成事件
func (r *RabbitMQ) PublishResumeProcessed(ctx context.Context, event ResumeProcessedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("发布事件到 %s/%s 失败: %w", r.exchange, r.routingKey, err)
	}
	return nil
}

// Close 关闭通道和连接
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
