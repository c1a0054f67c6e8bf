package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config OpenTelemetry 配置
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`             // Is enabled
	ServiceName    string                 `mapstructure:"service_name"`        // service name
	ServiceVersion string                 `mapstructure:"service_version"`     // service version
	Exporter       ExporterConfig         `mapstructure:"exporter"`            // exporter configuration
	Sampler        SamplerConfig          `mapstructure:"sampler"`             // Sampling configuration
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // Resource attributes (support nesting)
	Batch          BatchConfig            `mapstructure:"batch"`               // Batch processing configuration
	Metrics        MetricsConfig          `mapstructure:"metrics"`             // Metrics configuration
}

// ExporterConfig exporter configuration
type ExporterConfig struct {
	Type     string            `mapstructure:"type"`     // otlp, stdout, noop
	Endpoint string            `mapstructure:"endpoint"` // Export endpoint
	Insecure bool              `mapstructure:"insecure"` // Whether to use an insecure connection
	Timeout  time.Duration     `mapstructure:"timeout"`  // Export timeout
	Headers  map[string]string `mapstructure:"headers"`  // Custom Headers (for authentication etc.)
}

// SamplerConfig Sampling configuration
type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // effective only with trace_id_ratio
}

// BatchConfig batch processing configuration
type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout"`
}

// MetricsConfig Metrics 配置
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	ExportInterval time.Duration     `mapstructure:"export_interval"`
	ExportTimeout  time.Duration     `mapstructure:"export_timeout"`
	Namespace      string            `mapstructure:"namespace"` // meter name prefix
	Labels         map[string]string `mapstructure:"labels"`    // Global tags (env, region, etc.)
}

// DefaultConfig 默认配置（关闭）
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "liqguard",
		ServiceVersion: "dev",
		Exporter: ExporterConfig{
			Type:     "stdout",
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{
			Type:  "parent_based_always_on",
			Ratio: 1.0,
		},
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
			ExportTimeout:  10 * time.Second,
			Namespace:      "liqguard",
		},
	}
}

// Validate 验证配置，未启用时不校验
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
		validation.Field(&c.Batch),
	)
}

// Validate exporter
func (e ExporterConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required, validation.In("otlp", "stdout", "noop")),
		validation.Field(&e.Endpoint, validation.When(e.Type == "otlp", validation.Required)),
	)
}

// Validate sampler
func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required,
			validation.In("always_on", "always_off", "trace_id_ratio", "parent_based_always_on")),
		validation.Field(&s.Ratio, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Validate batch
func (b BatchConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	return validation.ValidateStruct(&b,
		validation.Field(&b.MaxQueueSize, validation.Required, validation.Min(1)),
		validation.Field(&b.MaxExportBatchSize, validation.Required, validation.Min(1)),
	)
}
