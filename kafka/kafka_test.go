package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/retry"
)

func mockConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "3.8.0", cfg.Version)
	assert.Equal(t, "liqguard", cfg.ClientID)
	assert.Equal(t, "liqguard.events", cfg.Topic)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, 1, cfg.Producer.RequiredAcks)
	assert.Equal(t, 10*time.Second, cfg.Producer.Timeout)
	assert.Equal(t, "none", cfg.Producer.Compression)
	assert.NoError(t, cfg.Validate())

	idem := Config{Producer: ProducerConfig{Idempotent: true}}
	idem.ApplyDefaults()
	assert.Equal(t, -1, idem.Producer.RequiredAcks)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Enabled = true
		cfg.Brokers = []string{"localhost:9092"}
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no brokers", func(c *Config) { c.Brokers = nil }},
		{"empty broker", func(c *Config) { c.Brokers = []string{""} }},
		{"no topic", func(c *Config) { c.Topic = "" }},
		{"bad version", func(c *Config) { c.Version = "banana" }},
		{"bad acks", func(c *Config) { c.Producer.RequiredAcks = 2 }},
		{"bad compression", func(c *Config) { c.Producer.Compression = "brotli" }},
		{"sasl without password", func(c *Config) {
			c.SASL = &SASLConfig{Enabled: true, Mechanism: "PLAIN", Username: "u"}
		}},
		{"sasl bad mechanism", func(c *Config) {
			c.SASL = &SASLConfig{Enabled: true, Mechanism: "GSSAPI", Username: "u", Password: "p"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildSaramaConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Brokers = []string{"localhost:9092"}
	cfg.Producer.Compression = "zstd"
	cfg.SASL = &SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"}

	sc, err := buildSaramaConfig(cfg)
	require.NoError(t, err)
	want, err := sarama.ParseKafkaVersion("3.8.0")
	require.NoError(t, err)
	assert.Equal(t, want, sc.Version)
	assert.Equal(t, "liqguard", sc.ClientID)
	assert.True(t, sc.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionZSTD, sc.Producer.Compression)
	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), sc.Net.SASL.Mechanism)
	require.NotNil(t, sc.Net.SASL.SCRAMClientGeneratorFunc)

	client, ok := sc.Net.SASL.SCRAMClientGeneratorFunc().(*XDGSCRAMClient)
	require.True(t, ok)
	require.NoError(t, client.Begin("u", "p", ""))
	first, err := client.Step("")
	require.NoError(t, err)
	assert.Contains(t, first, "n=u")
	assert.False(t, client.Done())

	cfg.TLS = &TLSConfig{Enabled: true, CAFile: "testdata/missing-ca.pem"}
	_, err = buildSaramaConfig(cfg)
	assert.Error(t, err)
}

func TestProducer_Send(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mockConfig())
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "t1" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "k" {
			return fmt.Errorf("unexpected key %s", key)
		}
		if header(msg, "content-type") != "application/json" {
			return errors.New("missing content-type header")
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducer(sp, logger.NewNop())
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, metrics.RegisterMetrics(mp.Meter("test")))
	assert.True(t, metrics.IsRegistered())
	p.SetMetrics(metrics)

	ctx := context.Background()
	res, err := p.SendJSON(ctx, "t1", "k", map[string]string{"a": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Topic)

	_, err = p.Send(ctx, &Message{Topic: "t1", Value: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	_, err = p.Send(ctx, &Message{Value: []byte("x")})
	assert.Error(t, err)
	_, err = p.Send(ctx, nil)
	assert.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), counts["kafka_messages_produced_total"])
	assert.Equal(t, int64(1), counts["kafka_produce_errors_total"])

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.Send(ctx, &Message{Topic: "t1"})
	assert.Error(t, err)
	assert.Error(t, p.Ping(ctx, "t1"))
}

func TestEventSink_Attach(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mockConfig())
	var got *sarama.ProducerMessage
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		got = msg
		return nil
	})

	p := NewProducer(sp, logger.NewNop())
	defer p.Close()

	cfg := DefaultConfig()
	cfg.Topic = "events"
	cfg.Events = []string{breaker.EventBreakerTripped}
	sink := NewEventSink(p, cfg, logger.NewNop())

	d := event.NewDispatcher(event.WithSetAllSync(true))
	defer d.Close()
	unsub := sink.Attach(d)
	counter := d.(interface{ ListenerCount(string) int })
	assert.Equal(t, 1, counter.ListenerCount(breaker.EventBreakerTripped))

	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tripped := &breaker.TrippedEvent{BaseEvent: event.NewEvent(breaker.EventBreakerTripped, at), Asset: "eth"}
	require.NoError(t, d.Dispatch(ctx, tripped))
	// not subscribed
	require.NoError(t, d.Dispatch(ctx, &breaker.TrippedEvent{BaseEvent: event.NewEvent(breaker.EventFundsLocked, at)}))

	require.NotNil(t, got)
	assert.Equal(t, "events", got.Topic)
	key, _ := got.Key.Encode()
	assert.Equal(t, "eth", string(key))
	assert.Equal(t, breaker.EventBreakerTripped, header(got, "event-name"))

	value, _ := got.Value.Encode()
	var env struct {
		Name    string                 `json:"name"`
		Source  string                 `json:"source"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(value, &env))
	assert.Equal(t, breaker.EventBreakerTripped, env.Name)
	assert.Equal(t, "liqguard", env.Source)
	assert.Equal(t, "eth", env.Payload["asset"])

	unsub()
	assert.Equal(t, 0, counter.ListenerCount(breaker.EventBreakerTripped))
}

func TestEventSink_HandleError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, mockConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := NewProducer(sp, logger.NewNop())
	defer p.Close()

	sink := NewEventSink(p, DefaultConfig(), logger.NewNop())
	err := sink.Handle(context.Background(), event.NewEvent("governance.vote_cast", time.Now()))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
}

func TestHealthChecker(t *testing.T) {
	hc := NewHealthChecker(nil, "events")
	assert.Equal(t, "kafka", hc.Name())
	assert.Error(t, hc.Check(context.Background()))

	sp := mocks.NewSyncProducer(t, mockConfig())
	p := NewProducer(sp, logger.NewNop())
	hc = NewHealthChecker(p, "events")
	hc.SetTimeout(time.Second)
	// producers built from an existing SyncProducer have no client to refresh
	assert.NoError(t, hc.Check(context.Background()))
	require.NoError(t, p.Close())
	assert.Error(t, hc.Check(context.Background()))
}

func TestDial_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Brokers = []string{"127.0.0.1:1"}
	cfg.ConnectAttempts = 2

	_, err := Dial(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Equal(t, 2, retry.GetAttempts(err))

	cfg.Brokers = nil
	_, err = Dial(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
