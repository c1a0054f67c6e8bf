package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/retry"
)

// Message 待发送的消息
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerResult send result
type ProducerResult struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Producer 同步生产者，发送成功即已被 broker 确认
type Producer struct {
	client   sarama.Client // nil when built from an existing SyncProducer
	producer sarama.SyncProducer
	logger   *logger.CtxZapLogger
	metrics  *Metrics

	mu     sync.RWMutex
	closed bool
}

// NewProducer wraps an existing sarama producer (tests use sarama/mocks)
func NewProducer(sp sarama.SyncProducer, log *logger.CtxZapLogger) *Producer {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return &Producer{producer: sp, logger: log}
}

// Dial 连接 broker 并创建同步生产者，连接失败按 connect_attempts 重试
func Dial(ctx context.Context, cfg Config, log *logger.CtxZapLogger) (*Producer, error) {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := retry.DoWithData(ctx, func() (sarama.Client, error) {
		return sarama.NewClient(cfg.Brokers, sc)
	},
		retry.MaxAttempts(cfg.ConnectAttempts),
		retry.OnRetry(func(attempt int, err error) {
			log.WarnCtx(ctx, "kafka connect failed, retrying",
				zap.Strings("brokers", cfg.Brokers),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create client failed: %w", err)
	}

	sp, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create sync producer failed: %w", err)
	}

	log.DebugCtx(ctx, "kafka producer connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return &Producer{client: client, producer: sp, logger: log}, nil
}

// SetMetrics 注入指标收集器
func (p *Producer) SetMetrics(m *Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// Send 同步发送
func (p *Producer) Send(ctx context.Context, msg *Message) (*ProducerResult, error) {
	p.mu.RLock()
	closed, metrics := p.closed, p.metrics
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("producer is closed")
	}
	if msg == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}
	if msg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	pm := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Value),
	}
	if len(msg.Key) > 0 {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}
	if !msg.Timestamp.IsZero() {
		pm.Timestamp = msg.Timestamp
	}
	if len(msg.Headers) > 0 {
		keys := make([]string, 0, len(msg.Headers))
		for k := range msg.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(msg.Headers[k])})
		}
	}

	start := time.Now()
	partition, offset, err := p.producer.SendMessage(pm)
	if metrics != nil {
		metrics.RecordProduce(ctx, msg.Topic, time.Since(start), err)
	}
	if err != nil {
		p.logger.ErrorCtx(ctx, "send message failed",
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return nil, fmt.Errorf("send message failed: %w", err)
	}

	p.logger.DebugCtx(ctx, "message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return &ProducerResult{Topic: msg.Topic, Partition: partition, Offset: offset}, nil
}

// SendJSON 以 JSON 编码 value 后发送
func (p *Producer) SendJSON(ctx context.Context, topic, key string, value interface{}, headers map[string]string) (*ProducerResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal json failed: %w", err)
	}
	h := map[string]string{"content-type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return p.Send(ctx, &Message{Topic: topic, Key: []byte(key), Value: data, Headers: h})
}

// Ping 刷新 topic 元数据确认 broker 可达
func (p *Producer) Ping(ctx context.Context, topic string) error {
	p.mu.RLock()
	closed, client := p.closed, p.client
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}
	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- client.RefreshMetadata(topic)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Close 关闭生产者与底层 client，可重复调用
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close producer failed: %w", err)
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close client failed: %w", err)
		}
	}
	p.logger.Debug("kafka producer closed")
	return nil
}

// Shutdown implements do.Shutdowner
func (p *Producer) Shutdown() error {
	return p.Close()
}
