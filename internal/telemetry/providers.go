package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultMetricsInterval is the default OTLP metric push interval
const DefaultMetricsInterval = 60 * time.Second

// ProviderOption configures where a tracer or meter provider exports to
type ProviderOption func(*exportTarget)

// exportTarget is shared by the tracer and meter providers so both report
// the same resource to the same collector
type exportTarget struct {
	serviceName    string
	serviceVersion string
	environment    string
	endpoint       string
	insecure       bool
	registry       *prometheus.Registry
}

// WithService sets the service name and version on the exported resource
func WithService(name, version string) ProviderOption {
	return func(t *exportTarget) {
		t.serviceName = name
		t.serviceVersion = version
	}
}

// WithEnvironment sets deployment.environment on the exported resource
func WithEnvironment(env string) ProviderOption {
	return func(t *exportTarget) {
		t.environment = env
	}
}

// WithExporter sets the OTLP/HTTP collector endpoint
func WithExporter(endpoint string, insecure bool) ProviderOption {
	return func(t *exportTarget) {
		t.endpoint = endpoint
		t.insecure = insecure
	}
}

// WithPrometheusRegistry sets the registry the Prometheus reader registers with
func WithPrometheusRegistry(reg *prometheus.Registry) ProviderOption {
	return func(t *exportTarget) {
		t.registry = reg
	}
}

func newExportTarget(opts []ProviderOption) *exportTarget {
	t := &exportTarget{
		serviceName:    DefaultServiceName,
		serviceVersion: defaultServiceVersion(),
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *exportTarget) resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(t.serviceName),
		semconv.ServiceVersion(t.serviceVersion),
	}
	if t.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(t.environment))
	}

	// resource.New avoids schema URL conflicts with resource.Default()
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider returns a batching OTLP tracer provider, or a no-op
// provider when tc is nil or disabled. An SDK provider is also installed as
// the global provider together with the W3C propagators.
func NewTracerProvider(ctx context.Context, tc *TracingConfig, opts ...ProviderOption) (trace.TracerProvider, error) {
	if tc == nil || !tc.Enabled {
		slog.Info("Tracing disabled, using no-op tracer provider")
		return tracenoop.NewTracerProvider(), nil
	}

	target := newExportTarget(opts)
	res, err := target.resource(ctx)
	if err != nil {
		return nil, err
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(target.endpoint)}
	if target.insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		slog.Warn("Tracing configured with insecure connection, telemetry data is sent over unencrypted HTTP")
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.GetSampling()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("Tracing initialized", "endpoint", target.endpoint, "sampling_ratio", tc.GetSampling())
	return tp, nil
}

// NewMeterProvider returns a meter provider with an OTLP periodic reader
// and, when enabled, a Prometheus reader. It is a no-op provider when mc is
// nil or disabled.
func NewMeterProvider(ctx context.Context, mc *MetricsConfig, opts ...ProviderOption) (metric.MeterProvider, error) {
	if mc == nil || !mc.Enabled {
		slog.Info("Metrics disabled, using no-op meter provider")
		return metricnoop.NewMeterProvider(), nil
	}

	target := newExportTarget(opts)
	res, err := target.resource(ctx)
	if err != nil {
		return nil, err
	}

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if !mc.DisableOTLP {
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(target.endpoint)}
		if target.insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mc.GetInterval())),
		))
	}
	if mc.Prometheus {
		if target.registry == nil {
			return nil, fmt.Errorf("prometheus registry is required when prometheus export is enabled")
		}
		reader, err := otelprom.New(otelprom.WithRegisterer(target.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized", "otlp", !mc.DisableOTLP, "prometheus", mc.Prometheus)
	return mp, nil
}

// PrometheusHandler serves the metrics gathered by reg
func PrometheusHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
