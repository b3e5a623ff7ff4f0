package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the OTLP metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	loginAttempts     metric.Int64Counter
	sessionBootstraps metric.Int64Counter
	tenantLookups     metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "stackdesk"
	}
	meter := provider.Meter(name)

	loginAttempts, err := meter.Int64Counter("stackdesk_login_attempts_total")
	if err != nil {
		return nil, err
	}
	sessionBootstraps, err := meter.Int64Counter("stackdesk_session_bootstraps_total")
	if err != nil {
		return nil, err
	}
	tenantLookups, err := meter.Int64Counter("stackdesk_tenant_lookups_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("stackdesk_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		loginAttempts:     loginAttempts,
		sessionBootstraps: sessionBootstraps,
		tenantLookups:     tenantLookups,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordLoginAttempt increments login attempt counts.
func (m *Metrics) RecordLoginAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordSessionBootstrap increments bootstrap pass counts by terminal state.
func (m *Metrics) RecordSessionBootstrap(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.sessionBootstraps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", strings.TrimSpace(state)),
	))
}

// RecordTenantLookup increments tenant lookup counts by result.
func (m *Metrics) RecordTenantLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.tenantLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", strings.TrimSpace(result)),
	))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
