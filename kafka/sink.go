package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

// Envelope 写入 Kafka 的消息体
type Envelope struct {
	Name    string      `json:"name"`
	Source  string      `json:"source"`
	Payload event.Event `json:"payload"`
}

// keyed events choose their own partition key (asset, proposal id)
type keyed interface {
	PartitionKey() string
}

// EventSink 把领域事件转发到 Kafka topic，实现 event.Listener
type EventSink struct {
	producer *Producer
	topic    string
	source   string
	events   []string
	logger   *logger.CtxZapLogger
}

// NewEventSink cfg.Topic 为目标 topic，cfg.ClientID 作为 source
func NewEventSink(producer *Producer, cfg Config, log *logger.CtxZapLogger) *EventSink {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return &EventSink{
		producer: producer,
		topic:    cfg.Topic,
		source:   cfg.ClientID,
		events:   cfg.Events,
		logger:   log,
	}
}

// Handle implements event.Listener
func (s *EventSink) Handle(ctx context.Context, e event.Event) error {
	key := e.Name()
	if k, ok := e.(keyed); ok && k.PartitionKey() != "" {
		key = k.PartitionKey()
	}
	_, err := s.producer.SendJSON(ctx, s.topic, key,
		Envelope{Name: e.Name(), Source: s.source, Payload: e},
		map[string]string{"event-name": e.Name()})
	if err != nil {
		s.logger.WarnCtx(ctx, "forward event failed",
			zap.String("event", e.Name()),
			zap.String("topic", s.topic),
			zap.Error(err))
		return err
	}
	return nil
}

// Attach 订阅 d 上的事件（未配置 events 时订阅全部），在协程池中异步发送，
// 排在其他监听器之后
func (s *EventSink) Attach(d event.Dispatcher) event.UnsubscribeFunc {
	names := s.events
	if len(names) == 0 {
		names = []string{event.Wildcard}
	}
	unsubs := make([]event.UnsubscribeFunc, 0, len(names))
	for _, name := range names {
		unsubs = append(unsubs, d.Subscribe(name, s, event.WithAsync(), event.WithPriority(100)))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
