// Package telemetry provides OpenTelemetry instrumentation for the POI sync service.
// Spans are exported over OTLP/HTTP, metrics over OTLP/HTTP and optionally
// scraped by Prometheus on /metrics.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultServiceName is reported when serviceName is not configured
	DefaultServiceName = "poi-sync-api"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling samples 5% of root traces
	DefaultSampling = 0.05
)

// Config is the telemetry section of the service configuration
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Environment is exported as deployment.environment, e.g. "staging"
	Environment string `yaml:"environment,omitempty"`

	// Endpoint is the collector in "host:port" form
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between OTLP pushes, defaults to 60s
	Interval string `yaml:"interval,omitempty"`

	// Prometheus serves /metrics for scraping
	Prometheus bool `yaml:"prometheus,omitempty"`

	// DisableOTLP leaves Prometheus as the only exporter
	DisableOTLP bool `yaml:"disableOTLP,omitempty"`
}

// GetServiceName returns the configured name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, defaulting to the build version
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return defaultServiceVersion()
	}
	return c.ServiceVersion
}

// GetEndpoint returns the configured collector or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the ratio of sampled root traces. Zero means unset.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetInterval returns the OTLP push interval
func (c *MetricsConfig) GetInterval() time.Duration {
	if c.Interval == "" {
		return DefaultMetricsInterval
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return DefaultMetricsInterval
	}
	return d
}

// Validate checks the enabled parts of the configuration
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if t := c.Tracing; t != nil && t.Enabled && (t.Sampling < 0 || t.Sampling > 1) {
		errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", t.Sampling))
	}
	if m := c.Metrics; m != nil && m.Enabled {
		if m.DisableOTLP && !m.Prometheus {
			errs = append(errs, errors.New("metrics: at least one exporter must be enabled"))
		}
		if m.Interval != "" {
			if d, err := time.ParseDuration(m.Interval); err != nil || d <= 0 {
				errs = append(errs, fmt.Errorf("metrics: interval must be a positive duration, got %q", m.Interval))
			}
		}
	}
	return errors.Join(errs...)
}
