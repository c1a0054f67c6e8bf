package kafka

import (
	"context"
	"fmt"
	"time"
)

// HealthChecker Kafka 健康检查器
type HealthChecker struct {
	producer *Producer
	topic    string
	timeout  time.Duration
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(producer *Producer, topic string) *HealthChecker {
	return &HealthChecker{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
	}
}

// Name 返回检查项名称
func (h *HealthChecker) Name() string {
	return "kafka"
}

// Check 执行健康检查
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.producer == nil {
		return fmt.Errorf("kafka producer is nil")
	}
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.producer.Ping(checkCtx, h.topic)
}

// SetTimeout 设置超时时间
func (h *HealthChecker) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}
