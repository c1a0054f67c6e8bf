package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// createMeterProvider 创建 MeterProvider，按 Exporter.Type 周期导出
func (m *Manager) createMeterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)

	switch m.config.Exporter.Type {
	case "otlp":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(m.config.Exporter.Endpoint),
			otlpmetricgrpc.WithTimeout(m.config.Exporter.Timeout),
		}
		if m.config.Exporter.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(m.config.Exporter.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(m.config.Exporter.Headers))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	case "stdout":
		exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(m.writer))
	case "noop":
		exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
	default:
		err = fmt.Errorf("unsupported metrics exporter type: %s", m.config.Exporter.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if m.config.Metrics.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(m.config.Metrics.ExportInterval))
	}
	if m.config.Metrics.ExportTimeout > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithTimeout(m.config.Metrics.ExportTimeout))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	), nil
}
