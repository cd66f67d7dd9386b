// Package config provides configuration loading and management for the POI sync service.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rovits/poi-sync-service/internal/ratelimit"
	"github.com/rovits/poi-sync-service/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the service
const EnvPrefix = "POISYNC"

const (
	// CacheTypeRedis selects the Redis cache and Redis-backed rate limit counters
	CacheTypeRedis = "redis"

	// CacheTypeMemory selects process-local cache and counters
	CacheTypeMemory = "memory"

	// StoreTypePostgres selects the PostgreSQL/PostGIS place store
	StoreTypePostgres = "postgres"

	// StoreTypeSQLite selects the embedded SQLite place store
	StoreTypeSQLite = "sqlite"

	// StoreTypeMemory selects the in-memory place store
	StoreTypeMemory = "memory"
)

const (
	defaultAddress            = ":8080"
	defaultSearchTTL          = 10 * time.Minute
	defaultDetailsTTL         = 24 * time.Hour
	defaultGoogleEndpoint     = "https://places.googleapis.com"
	defaultGoogleTimeout      = 10 * time.Second
	defaultGoogleMaxRetries   = 3
	defaultSyncConcurrency    = 8
	defaultJobRetention       = time.Hour
	defaultWriteTimeout       = 30 * time.Second
	defaultAnonymousLimit     = 20
	defaultAuthenticatedLimit = 100
	defaultRateLimitPeriod    = 60 * time.Second
	defaultMaxAttempts        = 5
	defaultMaxIPAttempts      = 20
	defaultBlockDuration      = 15 * time.Minute
	defaultAPIKeyHeader       = "X-API-Key"
	defaultSQLitePath         = "./data/poi.db"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Cache     CacheConfig       `yaml:"cache"`
	Store     StoreConfig       `yaml:"store"`
	Sources   SourcesConfig     `yaml:"sources"`
	Sync      SyncConfig        `yaml:"sync"`
	RateLimit RateLimitConfig   `yaml:"rateLimit"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address, overridden by the --address flag
	Address string `yaml:"address,omitempty"`

	// APIKey enables API key authentication when set
	APIKey *APIKeyConfig `yaml:"apiKey,omitempty"`
}

// APIKeyConfig defines the API key accepted by the HTTP API
type APIKeyConfig struct {
	// Header carrying the key, defaults to X-API-Key
	Header string `yaml:"header,omitempty"`

	// ValueFile is a file holding the accepted key. POISYNC_API_KEY is used
	// when no file is configured.
	ValueFile string `yaml:"valueFile,omitempty"`
}

// CacheConfig defines the cache tier
type CacheConfig struct {
	// Type is either redis or memory, defaults to memory
	Type  string       `yaml:"type,omitempty"`
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// SearchTTL is the lifetime of nearby and text search entries (default 10m)
	SearchTTL string `yaml:"searchTTL,omitempty"`

	// DetailsTTL is the lifetime of details entries (default 24h)
	DetailsTTL string `yaml:"detailsTTL,omitempty"`
}

// RedisConfig defines the Redis connection
type RedisConfig struct {
	URL        string `yaml:"url"`
	PoolSize   int    `yaml:"poolSize,omitempty"`
	MaxRetries int    `yaml:"maxRetries,omitempty"`
}

// StoreConfig defines the persistent place store
type StoreConfig struct {
	// Type is postgres, sqlite or memory, defaults to memory
	Type     string          `yaml:"type,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
}

// SQLiteConfig defines the embedded store file
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// SourcesConfig groups upstream place sources
type SourcesConfig struct {
	Google GoogleConfig `yaml:"google"`
}

// GoogleConfig defines the Google Places API client
type GoogleConfig struct {
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
	MaxRetries *int   `yaml:"maxRetries,omitempty"`
}

// SyncConfig defines the background sync pipeline
type SyncConfig struct {
	// Concurrency bounds the in-flight detail lookups of one job
	Concurrency int `yaml:"concurrency,omitempty"`

	// JobRetention is how long finished and running job entries are kept
	JobRetention string `yaml:"jobRetention,omitempty"`

	// WriteTimeout bounds detached store and cache writes
	WriteTimeout string `yaml:"writeTimeout,omitempty"`

	// Areas are synced periodically by the coordinator
	Areas []SyncAreaConfig `yaml:"syncAreas,omitempty"`
}

// SyncAreaConfig is an area synced on a schedule
type SyncAreaConfig struct {
	Name       string            `yaml:"name"`
	Lat        float64           `yaml:"lat"`
	Lng        float64           `yaml:"lng"`
	Radius     float64           `yaml:"radius"`
	Type       string            `yaml:"type,omitempty"`
	SyncPolicy *SyncPolicyConfig `yaml:"syncPolicy,omitempty"`
}

// SyncPolicyConfig defines synchronization settings
type SyncPolicyConfig struct {
	Interval string `yaml:"interval"`
}

// RateLimitConfig defines request limiting and login lockout
type RateLimitConfig struct {
	AnonymousLimit     int    `yaml:"anonymousLimit,omitempty"`
	AuthenticatedLimit int    `yaml:"authenticatedLimit,omitempty"`
	Period             string `yaml:"period,omitempty"`

	// JWTSecretFile holds the HS256 secret used to identify authenticated
	// callers. POISYNC_JWT_SECRET is used when no file is configured.
	JWTSecretFile string `yaml:"jwtSecretFile,omitempty"`

	// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For
	// header identifies the client. Empty means the header is ignored.
	TrustedProxies []string `yaml:"trustedProxies,omitempty"`

	Lockout LockoutConfig `yaml:"lockout"`
}

// LockoutConfig defines failed attempt thresholds
type LockoutConfig struct {
	MaxAttempts   int    `yaml:"maxAttempts,omitempty"`
	MaxIPAttempts int    `yaml:"maxIPAttempts,omitempty"`
	BlockDuration string `yaml:"blockDuration,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// newEnv returns a viper instance reading POISYNC_* variables
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// readSecret returns the trimmed content of file when set, else the value of
// the POISYNC_<envKey> variable.
func readSecret(file, envKey string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file %s: %w", file, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return newEnv().GetString(envKey), nil
}

func durationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// GetAddress returns the listen address
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return defaultAddress
	}
	return s.Address
}

// GetHeader returns the API key header name
func (a *APIKeyConfig) GetHeader() string {
	if a.Header == "" {
		return defaultAPIKeyHeader
	}
	return a.Header
}

// GetValue returns the accepted API key
func (a *APIKeyConfig) GetValue() (string, error) {
	key, err := readSecret(a.ValueFile, "API_KEY")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no API key configured: set valueFile or %s_API_KEY", EnvPrefix)
	}
	return key, nil
}

// GetType returns the cache type, defaulting to memory
func (c *CacheConfig) GetType() string {
	if c.Type == "" {
		return CacheTypeMemory
	}
	return c.Type
}

// GetSearchTTL returns the search entry lifetime
func (c *CacheConfig) GetSearchTTL() time.Duration {
	return durationOr(c.SearchTTL, defaultSearchTTL)
}

// GetDetailsTTL returns the details entry lifetime
func (c *CacheConfig) GetDetailsTTL() time.Duration {
	return durationOr(c.DetailsTTL, defaultDetailsTTL)
}

// GetType returns the store type, defaulting to memory
func (s *StoreConfig) GetType() string {
	if s.Type == "" {
		return StoreTypeMemory
	}
	return s.Type
}

// GetPath returns the SQLite file path
func (s *SQLiteConfig) GetPath() string {
	if s == nil || s.Path == "" {
		return defaultSQLitePath
	}
	return s.Path
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from POISYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	password, err := readSecret(d.PasswordFile, "DATABASE_PASSWORD")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf(
			"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
		)
	}
	return password, nil
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetConnMaxLifetime returns the pool connection lifetime
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return durationOr(d.ConnMaxLifetime, 5*time.Minute)
}

// GetEndpoint returns the Places API base URL
func (g *GoogleConfig) GetEndpoint() string {
	if g.Endpoint == "" {
		return defaultGoogleEndpoint
	}
	return strings.TrimRight(g.Endpoint, "/")
}

// GetAPIKey returns the Places API key from APIKeyFile or POISYNC_GOOGLE_API_KEY
func (g *GoogleConfig) GetAPIKey() (string, error) {
	key, err := readSecret(g.APIKeyFile, "GOOGLE_API_KEY")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no places API key configured: set apiKeyFile or %s_GOOGLE_API_KEY", EnvPrefix)
	}
	return key, nil
}

// GetTimeout returns the per-request timeout of the Places client
func (g *GoogleConfig) GetTimeout() time.Duration {
	return durationOr(g.Timeout, defaultGoogleTimeout)
}

// GetMaxRetries returns how many times a retryable request is repeated
func (g *GoogleConfig) GetMaxRetries() int {
	if g.MaxRetries == nil {
		return defaultGoogleMaxRetries
	}
	return *g.MaxRetries
}

// GetConcurrency returns the detail fan-out bound
func (s *SyncConfig) GetConcurrency() int {
	if s.Concurrency <= 0 {
		return defaultSyncConcurrency
	}
	return s.Concurrency
}

// GetJobRetention returns the job registry retention
func (s *SyncConfig) GetJobRetention() time.Duration {
	return durationOr(s.JobRetention, defaultJobRetention)
}

// GetWriteTimeout returns the timeout of detached writes
func (s *SyncConfig) GetWriteTimeout() time.Duration {
	return durationOr(s.WriteTimeout, defaultWriteTimeout)
}

// GetInterval returns the parsed sync interval
func (a *SyncAreaConfig) GetInterval() time.Duration {
	if a.SyncPolicy == nil {
		return 0
	}
	return durationOr(a.SyncPolicy.Interval, 0)
}

// GetType returns the place type of the area, defaulting to restaurant
func (a *SyncAreaConfig) GetType() string {
	if a.Type == "" {
		return "restaurant"
	}
	return a.Type
}

// GetAnonymousLimit returns the per-window limit of anonymous callers
func (r *RateLimitConfig) GetAnonymousLimit() int {
	if r.AnonymousLimit <= 0 {
		return defaultAnonymousLimit
	}
	return r.AnonymousLimit
}

// GetAuthenticatedLimit returns the per-window limit of authenticated callers
func (r *RateLimitConfig) GetAuthenticatedLimit() int {
	if r.AuthenticatedLimit <= 0 {
		return defaultAuthenticatedLimit
	}
	return r.AuthenticatedLimit
}

// GetPeriod returns the rate limit window
func (r *RateLimitConfig) GetPeriod() time.Duration {
	return durationOr(r.Period, defaultRateLimitPeriod)
}

// GetJWTSecret returns the bearer token secret, or "" when none is configured
func (r *RateLimitConfig) GetJWTSecret() (string, error) {
	return readSecret(r.JWTSecretFile, "JWT_SECRET")
}

// GetTrustedProxies parses TrustedProxies
func (r *RateLimitConfig) GetTrustedProxies() ([]netip.Prefix, error) {
	return ratelimit.ParseTrustedProxies(r.TrustedProxies)
}

// GetMaxAttempts returns the per-user failed attempt threshold
func (l *LockoutConfig) GetMaxAttempts() int {
	if l.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return l.MaxAttempts
}

// GetMaxIPAttempts returns the per-IP failed attempt threshold
func (l *LockoutConfig) GetMaxIPAttempts() int {
	if l.MaxIPAttempts <= 0 {
		return defaultMaxIPAttempts
	}
	return l.MaxIPAttempts
}

// GetBlockDuration returns how long a locked out subject stays blocked
func (l *LockoutConfig) GetBlockDuration() time.Duration {
	return durationOr(l.BlockDuration, defaultBlockDuration)
}
