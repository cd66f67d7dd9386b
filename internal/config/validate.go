package config

import (
	"fmt"
	"time"

	"github.com/rovits/poi-sync-service/internal/places"
)

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Cache.validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Sources.Google.validate(); err != nil {
		return fmt.Errorf("sources.google: %w", err)
	}
	if err := c.Sync.validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.RateLimit.validate(); err != nil {
		return fmt.Errorf("rateLimit: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

func (c *CacheConfig) validate() error {
	switch c.GetType() {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when type is %s", CacheTypeRedis)
		}
	default:
		return fmt.Errorf("unsupported type %q", c.Type)
	}
	if err := validateDuration("searchTTL", c.SearchTTL); err != nil {
		return err
	}
	return validateDuration("detailsTTL", c.DetailsTTL)
}

func (s *StoreConfig) validate() error {
	switch s.GetType() {
	case StoreTypeMemory, StoreTypeSQLite:
		return nil
	case StoreTypePostgres:
		return s.Database.validate()
	default:
		return fmt.Errorf("unsupported type %q", s.Type)
	}
}

func (d *DatabaseConfig) validate() error {
	if d == nil {
		return fmt.Errorf("database configuration is required when type is %s", StoreTypePostgres)
	}
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	return validateDuration("database.connMaxLifetime", d.ConnMaxLifetime)
}

func (g *GoogleConfig) validate() error {
	if g.MaxRetries != nil && *g.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must not be negative")
	}
	return validateDuration("timeout", g.Timeout)
}

func (s *SyncConfig) validate() error {
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if err := validateDuration("jobRetention", s.JobRetention); err != nil {
		return err
	}
	if err := validateDuration("writeTimeout", s.WriteTimeout); err != nil {
		return err
	}

	names := make(map[string]bool)
	for i, area := range s.Areas {
		if area.Name == "" {
			return fmt.Errorf("syncAreas[%d]: name is required", i)
		}
		if names[area.Name] {
			return fmt.Errorf("syncAreas[%d]: duplicate area name '%s'", i, area.Name)
		}
		names[area.Name] = true

		prefix := fmt.Sprintf("syncAreas[%d] (%s)", i, area.Name)
		if err := places.ValidateArea(area.Lat, area.Lng, area.Radius); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if err := validateSyncPolicy(area.SyncPolicy, prefix); err != nil {
			return err
		}
	}
	return nil
}

// validateSyncPolicy validates the sync policy configuration
func validateSyncPolicy(policy *SyncPolicyConfig, prefix string) error {
	if policy == nil || policy.Interval == "" {
		return fmt.Errorf("%s: syncPolicy.interval is required", prefix)
	}

	if err := validateDuration("syncPolicy.interval", policy.Interval); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}

	return nil
}

func (r *RateLimitConfig) validate() error {
	if r.AnonymousLimit < 0 || r.AuthenticatedLimit < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if err := validateDuration("period", r.Period); err != nil {
		return err
	}
	if _, err := r.GetTrustedProxies(); err != nil {
		return err
	}
	if r.Lockout.MaxAttempts < 0 || r.Lockout.MaxIPAttempts < 0 {
		return fmt.Errorf("lockout thresholds must not be negative")
	}
	return validateDuration("lockout.blockDuration", r.Lockout.BlockDuration)
}
