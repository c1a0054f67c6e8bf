// Package kafka forwards breaker and governance events to a Kafka topic.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
)

// Config Kafka 事件转发配置
type Config struct {
	// Enabled 关闭时不创建生产者
	Enabled bool `mapstructure:"enabled"`

	// Brokers broker 地址列表
	Brokers []string `mapstructure:"brokers"`

	// Version Kafka 版本，例如 "3.8.0"
	Version string `mapstructure:"version"`

	// ClientID 客户端标识
	ClientID string `mapstructure:"client_id"`

	// Topic 事件写入的 topic
	Topic string `mapstructure:"topic"`

	// Events 只转发这些事件；为空时转发全部
	Events []string `mapstructure:"events"`

	// ConnectAttempts 启动时连接 broker 的尝试次数
	ConnectAttempts int `mapstructure:"connect_attempts"`

	Producer ProducerConfig `mapstructure:"producer"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	// SASL 认证（可选）
	SASL *SASLConfig `mapstructure:"sasl"`

	// TLS 配置（可选）
	TLS *TLSConfig `mapstructure:"tls"`
}

// ProducerConfig producer configuration
type ProducerConfig struct {
	// RequiredAcks 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	RequiredAcks int `mapstructure:"required_acks"`

	Timeout time.Duration `mapstructure:"timeout"`

	RetryMax     int           `mapstructure:"retry_max"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	MaxMessageBytes int `mapstructure:"max_message_bytes"`

	// Compression none, gzip, snappy, lz4, zstd
	Compression string `mapstructure:"compression"`

	Idempotent bool `mapstructure:"idempotent"`
}

// SASLConfig SASL authentication configuration
type SASLConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Mechanism PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Mechanism string `mapstructure:"mechanism"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TLSConfig TLS configuration
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// DefaultConfig 关闭状态的默认配置
func DefaultConfig() Config {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	cfg.ApplyDefaults()
	return cfg
}

// Validate configuration，未启用时不校验
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	for _, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("kafka broker address cannot be empty")
		}
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka.topic cannot be empty")
	}
	if _, err := sarama.ParseKafkaVersion(c.Version); err != nil {
		return fmt.Errorf("kafka.version: %w", err)
	}
	if err := c.Producer.Validate(); err != nil {
		return fmt.Errorf("kafka.producer: %w", err)
	}
	if c.SASL != nil && c.SASL.Enabled {
		if err := c.SASL.Validate(); err != nil {
			return fmt.Errorf("kafka.sasl: %w", err)
		}
	}
	return nil
}

// Validate producer configuration
func (c ProducerConfig) Validate() error {
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("required_acks must be -1, 0, or 1, got: %d", c.RequiredAcks)
	}
	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes must be >= 0, got: %d", c.MaxMessageBytes)
	}
	switch c.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid compression: %s", c.Compression)
	}
	return nil
}

// Validate SASL configuration
func (c SASLConfig) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	switch c.Mechanism {
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return fmt.Errorf("invalid mechanism: %s", c.Mechanism)
	}
	return nil
}

// ApplyDefaults fills unset values
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "3.8.0"
	}
	if c.ClientID == "" {
		c.ClientID = "liqguard"
	}
	if c.Topic == "" {
		c.Topic = "liqguard.events"
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}

	p := &c.Producer
	if p.RequiredAcks == 0 && !p.Idempotent {
		p.RequiredAcks = 1
	}
	if p.Idempotent {
		// sarama requires WaitForAll for idempotent producers
		p.RequiredAcks = -1
	}
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	if p.RetryMax == 0 {
		p.RetryMax = 3
	}
	if p.RetryBackoff == 0 {
		p.RetryBackoff = 100 * time.Millisecond
	}
	if p.MaxMessageBytes == 0 {
		p.MaxMessageBytes = 1048576
	}
	if p.Compression == "" {
		p.Compression = "none"
	}
}

// buildSaramaConfig 转换为同步生产者所需的 sarama 配置
func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version failed: %w", err)
	}
	sc.Version = version
	sc.ClientID = cfg.ClientID

	// SyncProducer needs both
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	switch cfg.Producer.RequiredAcks {
	case 0:
		sc.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}
	sc.Producer.Timeout = cfg.Producer.Timeout
	sc.Producer.Retry.Max = cfg.Producer.RetryMax
	sc.Producer.Retry.Backoff = cfg.Producer.RetryBackoff
	sc.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	if cfg.Producer.Idempotent {
		sc.Producer.Idempotent = true
		sc.Net.MaxOpenRequests = 1
	}

	switch cfg.Producer.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	if cfg.SASL != nil && cfg.SASL.Enabled {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASL.Username
		sc.Net.SASL.Password = cfg.SASL.Password

		switch cfg.SASL.Mechanism {
		case "SCRAM-SHA-256":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
			}
		case "SCRAM-SHA-512":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
			}
		default:
			sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsCfg := &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}
		if cfg.TLS.CAFile != "" {
			pem, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file failed: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", cfg.TLS.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return sc, nil
}
